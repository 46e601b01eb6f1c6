// Package store keeps Newton sessions isolated per session ID, in memory or
// in SQLite, and evicts sessions whose page has gone idle.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/njchilds90/gonewton"
)

// Store is a session store that can also drop idle sessions.
type Store interface {
	gonewton.SessionStore
	Sweep(ctx context.Context, idleSince time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

type memEntry struct {
	sess    *gonewton.Session
	touched time.Time
}

// Memory is a process-local store. A single mutex serializes every action,
// which is all the single-writer session model needs.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*memEntry
	now      func() time.Time
	logger   *zap.Logger
}

func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		sessions: make(map[string]*memEntry),
		now:      time.Now,
		logger:   logger.Named("store.memory"),
	}
}

func (m *Memory) Get(_ context.Context, id string) (*gonewton.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gonewton.ErrSessionNotFound, id)
	}
	e.touched = m.now()
	return e.sess.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, id string, fn func(*gonewton.Session) error) (*gonewton.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var work *gonewton.Session
	e, ok := m.sessions[id]
	if ok {
		work = e.sess.Clone()
	} else {
		work = gonewton.NewSession(id)
	}
	if err := fn(work); err != nil {
		return nil, err
	}
	if !ok {
		m.logger.Debug("session created", zap.String("session", id))
	}
	m.sessions[id] = &memEntry{sess: work, touched: m.now()}
	return work.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) Sweep(_ context.Context, idleSince time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.sessions {
		if e.touched.Before(idleSince) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

func (m *Memory) Close() error { return nil }
