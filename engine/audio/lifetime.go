package audio

import "sync/atomic"

// Lifetime carries the shutdown phase of the process. Once BeginExit was
// called, finalizers stop touching the native engine, which may already be
// gone.
type Lifetime struct {
	exiting atomic.Bool
}

func NewLifetime() *Lifetime {
	return &Lifetime{}
}

func (l *Lifetime) BeginExit() {
	l.exiting.Store(true)
}

func (l *Lifetime) IsExiting() bool {
	return l.exiting.Load()
}
