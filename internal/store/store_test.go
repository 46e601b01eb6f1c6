package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/internal/config"
)

type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// backends returns each store implementation wired to the same fake clock.
func backends() map[string]func(*testing.T, *clock) Store {
	return map[string]func(*testing.T, *clock) Store{
		"memory": func(_ *testing.T, c *clock) Store {
			m := NewMemory(nil)
			m.now = c.now
			return m
		},
		"sqlite": func(t *testing.T, c *clock) Store {
			s, err := NewSQLite(":memory:", nil)
			require.NoError(t, err)
			s.now = c.now
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func step(p gonewton.Params) func(*gonewton.Session) error {
	return func(s *gonewton.Session) error {
		if res := s.Advance(p); res.Err != nil {
			return res.Err
		}
		return nil
	}
}

func TestStore_UpdateCreatesAndPersists(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, &clock{cur: time.Unix(1000, 0)})

			_, err := st.Get(ctx, "a")
			assert.ErrorIs(t, err, gonewton.ErrSessionNotFound)

			p := gonewton.DefaultParams()
			got, err := st.Update(ctx, "a", step(p))
			require.NoError(t, err)
			assert.Equal(t, "a", got.ID)
			assert.Equal(t, 1, got.Iterations)
			assert.Len(t, got.History, 2)

			got, err = st.Update(ctx, "a", step(p))
			require.NoError(t, err)
			assert.Equal(t, 2, got.Iterations)

			loaded, err := st.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, got, loaded)
			assert.True(t, loaded.Valid())

			n, err := st.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStore_FailedUpdateStoresNothing(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, &clock{cur: time.Unix(1000, 0)})

			p := gonewton.DefaultParams()
			before, err := st.Update(ctx, "a", step(p))
			require.NoError(t, err)

			p.Derivative = "0"
			_, err = st.Update(ctx, "a", step(p))
			assert.ErrorIs(t, err, gonewton.ErrZeroDerivative)

			after, err := st.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, before, after)

			_, err = st.Update(ctx, "fresh", func(*gonewton.Session) error { return errors.New("boom") })
			assert.Error(t, err)
			_, err = st.Get(ctx, "fresh")
			assert.ErrorIs(t, err, gonewton.ErrSessionNotFound)
		})
	}
}

func TestStore_ReturnedSessionsAreCopies(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, &clock{cur: time.Unix(1000, 0)})

			got, err := st.Update(ctx, "a", step(gonewton.DefaultParams()))
			require.NoError(t, err)
			got.History[0].X = 99
			got.Iterations = 7

			loaded, err := st.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, -1.5, loaded.History[0].X)
			assert.Equal(t, 1, loaded.Iterations)
		})
	}
}

func TestStore_ResetRoundTrip(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, &clock{cur: time.Unix(1000, 0)})

			_, err := st.Update(ctx, "a", step(gonewton.DefaultParams()))
			require.NoError(t, err)
			got, err := st.Update(ctx, "a", func(s *gonewton.Session) error {
				s.Reset()
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 0, got.Iterations)
			assert.Nil(t, got.History)

			assert.Empty(t, got.Function)

			loaded, err := st.Get(ctx, "a")
			require.NoError(t, err)
			assert.Nil(t, loaded.History)
			assert.Empty(t, loaded.Function)
		})
	}
}

func TestStore_DeleteAndSweep(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := &clock{cur: time.Unix(1000, 0)}
			st := open(t, clk)

			for _, id := range []string{"old", "busy", "gone"} {
				_, err := st.Update(ctx, id, step(gonewton.DefaultParams()))
				require.NoError(t, err)
			}
			require.NoError(t, st.Delete(ctx, "gone"))
			require.NoError(t, st.Delete(ctx, "never-existed"))

			clk.advance(10 * time.Minute)
			_, err := st.Get(ctx, "busy")
			require.NoError(t, err)

			n, err := st.Sweep(ctx, clk.now().Add(-5*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = st.Get(ctx, "old")
			assert.ErrorIs(t, err, gonewton.ErrSessionNotFound)
			_, err = st.Get(ctx, "busy")
			assert.NoError(t, err)
		})
	}
}

func TestStore_ConcurrentSessionsStayIsolated(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, &clock{cur: time.Unix(1000, 0)})

			p := gonewton.DefaultParams()
			p.Tolerance = 1e-300
			p.MaxIterations = 50

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				i := i
				id := fmt.Sprintf("s%d", i)
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j <= i; j++ {
						_, err := st.Update(ctx, id, step(p))
						assert.NoError(t, err)
					}
				}()
			}
			wg.Wait()

			for i := 0; i < 4; i++ {
				s, err := st.Get(ctx, fmt.Sprintf("s%d", i))
				require.NoError(t, err)
				assert.Equal(t, i+1, s.Iterations)
				assert.True(t, s.Valid())
			}
		})
	}
}

func TestMemory_UpdateRejectsEmptyIDAndCancelledContext(t *testing.T) {
	m := NewMemory(nil)
	_, err := m.Update(context.Background(), "", func(*gonewton.Session) error { return nil })
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Update(ctx, "a", func(*gonewton.Session) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	ctx := context.Background()

	st, err := NewSQLite(path, nil)
	require.NoError(t, err)
	_, err = st.Update(ctx, "keep", step(gonewton.DefaultParams()))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = NewSQLite(path, nil)
	require.NoError(t, err)
	defer st.Close()
	s, err := st.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Iterations)
	assert.Equal(t, gonewton.Point{X: -1.5, Y: 0.25}, s.History[0])
	assert.Equal(t, gonewton.DefaultFunction, s.Function)
	assert.Equal(t, gonewton.DefaultDerivative, s.Derivative)
}

func TestSQLite_MigratesOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		iterations INTEGER NOT NULL DEFAULT 0,
		history TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sessions (id, iterations, history, updated_at) VALUES ('old', 1, '[{"x":-1.5,"y":0.25},{"x":-1.4166666666666667,"y":0.006944444444444642}]', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	st, err := NewSQLite(path, nil)
	require.NoError(t, err)
	defer st.Close()

	s, err := st.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Iterations)
	assert.Empty(t, s.Function)

	s, err = st.Update(ctx, "old", step(gonewton.DefaultParams()))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Iterations)
	assert.Equal(t, gonewton.DefaultFunction, s.Function)
}

func TestOpen_SelectsBackend(t *testing.T) {
	st, err := Open(config.StoreConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, st)

	st, err = Open(config.StoreConfig{Backend: "sqlite", DatabasePath: ":memory:"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, st)
	require.NoError(t, st.Close())

	_, err = Open(config.StoreConfig{Backend: "redis"}, nil)
	assert.Error(t, err)
}

// ============================================================
// Janitor
// ============================================================

func TestJanitor_EvictsIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	clk := &clock{cur: time.Unix(1000, 0)}
	m := NewMemory(nil)
	m.now = clk.now
	_, err := m.Update(ctx, "idle", step(gonewton.DefaultParams()))
	require.NoError(t, err)

	j := &Janitor{Store: m, TTL: time.Minute, Interval: 5 * time.Millisecond, now: clk.now}
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	clk.advance(2 * time.Minute)
	assert.Eventually(t, func() bool {
		n, _ := m.Len(ctx)
		return n == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestJanitor_DisabledWaitsForCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	j := &Janitor{Store: NewMemory(nil)}
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	select {
	case <-done:
		t.Fatal("disabled janitor returned before cancellation")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	assert.NoError(t, <-done)
}
