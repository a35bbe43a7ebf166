// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxClientIDLen   = 36
	MaxClientNameLen = 36
)

var (
	ErrClientNameTooLong = errors.New("client name too long")
	ErrClientNameEmpty   = errors.New("client name empty")
)

type ClientID string

// Client is one control surface attached over the signal channel
// (a browser tab or a phone publishing its microphone).
type Client struct {
	ID   ClientID `json:"id"`
	Name string   `json:"name"`
}

// NewClient is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewClient(name string) (*Client, error) {
	if len(name) == 0 {
		return nil, ErrClientNameEmpty
	}
	if len(name) > MaxClientNameLen {
		return nil, ErrClientNameTooLong
	}
	id := ClientID(uuid.NewString())
	return &Client{ID: id, Name: name}, nil
}

func (c *Client) SetName(name string) error {
	if len(name) == 0 {
		return ErrClientNameEmpty
	}
	if len(name) > MaxClientNameLen {
		return ErrClientNameTooLong
	}
	c.Name = name
	return nil
}
