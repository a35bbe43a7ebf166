package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

type clientEntry struct {
	Signal core.SignalConnection
	Media  core.MediaConnection
	Cancel context.CancelFunc
}

// Registry tracks control clients and their signal and media connections.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.ClientID]*clientEntry
	clients map[domain.ClientID]*domain.Client
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.ClientID]*clientEntry),
		clients: make(map[domain.ClientID]*domain.Client),
	}
}

func (r *Registry) GetOrCreateClient(id domain.ClientID) domain.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return *c
	}
	c := &domain.Client{ID: id, Name: "guest"}
	r.clients[id] = c
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("created new client")
	return *c
}

func (r *Registry) UpdateName(id domain.ClientID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		c = &domain.Client{ID: id}
		r.clients[id] = c
	}
	if err := c.SetName(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("client", string(id)).Str("name", name).Msg("updated name")
	return nil
}

// BindSignal attaches a signal connection, cancelling the one it replaces.
func (r *Registry) BindSignal(id domain.ClientID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	e := r.entry(id)
	oldCancel := e.Cancel
	e.Signal = sig
	e.Cancel = cancel
	r.mu.Unlock()
	if oldCancel != nil {
		oldCancel()
	}
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("bound signal")
}

// BindMedia attaches a media connection and returns the replaced one.
func (r *Registry) BindMedia(id domain.ClientID, mc core.MediaConnection) core.MediaConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(id)
	old := e.Media
	e.Media = mc
	return old
}

// ReleaseMedia detaches mc if it is still the bound connection.
func (r *Registry) ReleaseMedia(id domain.ClientID, mc core.MediaConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Media != mc {
		return false
	}
	e.Media = nil
	return true
}

func (r *Registry) Media(id domain.ClientID) (core.MediaConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok && e.Media != nil {
		return e.Media, true
	}
	return nil, false
}

func (r *Registry) entry(id domain.ClientID) *clientEntry {
	e, ok := r.entries[id]
	if !ok {
		e = &clientEntry{}
		r.entries[id] = e
	}
	return e
}

// Unbind forgets the connections of id if sig is still the bound one.
func (r *Registry) Unbind(id domain.ClientID, sig core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Signal != sig {
		return false
	}
	delete(r.entries, id)
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("unbind client")
	return true
}

func (r *Registry) Cancel(id domain.ClientID) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("canceled client")
	return true
}

type SignalSnap struct {
	ID     domain.ClientID
	Signal core.SignalConnection
}

// Signals returns every bound signal connection.
func (r *Registry) Signals() []SignalSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SignalSnap, 0, len(r.entries))
	for id, e := range r.entries {
		if e.Signal != nil {
			out = append(out, SignalSnap{ID: id, Signal: e.Signal})
		}
	}
	return out
}
