package speaker

import "sync/atomic"

// Null discards audio. The mixer still keeps time on its own ticker.
type Null struct {
	frames atomic.Int64
}

func (n *Null) Write(samples []float32) error {
	n.frames.Add(int64(len(samples)))
	return nil
}

func (n *Null) Close() error { return nil }

// Frames is the total number of samples written.
func (n *Null) Frames() int64 { return n.frames.Load() }
