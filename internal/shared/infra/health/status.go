package health

import (
	"sync"
	"time"
)

// Snapshot es la foto que se expone en /health.
type Snapshot struct {
	Name        string     `json:"name"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
	Healthy     bool       `json:"healthy"`
}

// Status registra el último ciclo correcto y el último error de un componente de fondo.
type Status struct {
	name string

	mu          sync.RWMutex
	lastSuccess time.Time
	lastErr     error
	lastErrAt   time.Time
}

func NewStatus(name string) *Status {
	return &Status{name: name}
}

func (s *Status) RecordSuccess(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccess = at
}

func (s *Status) RecordFailure(err error, at time.Time) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = at
}

// Snapshot considera sano al componente si el último evento registrado fue un éxito.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Name: s.name}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		snap.LastSuccess = &t
	}
	if s.lastErr != nil {
		t := s.lastErrAt
		snap.LastError = s.lastErr.Error()
		snap.LastErrorAt = &t
	}
	snap.Healthy = s.lastErr == nil || s.lastSuccess.After(s.lastErrAt)
	return snap
}
