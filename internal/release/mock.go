package release

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Call records one Release invocation.
type Call struct {
	Depositor   string
	Destination string
}

// MockReleaser records calls and fails for depositors listed in FailFor.
// Delay simulates ledger latency.
type MockReleaser struct {
	Delay   time.Duration
	FailFor map[string]error

	mu    sync.Mutex
	calls []Call
}

func NewMockReleaser() *MockReleaser {
	return &MockReleaser{FailFor: make(map[string]error)}
}

func (m *MockReleaser) Release(ctx context.Context, depositor, destination string) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return fmt.Errorf("release canceled: %w", ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Depositor: depositor, Destination: destination})
	if err, ok := m.FailFor[depositor]; ok {
		return err
	}
	return nil
}

// Fail makes every later release for depositor return err.
func (m *MockReleaser) Fail(depositor string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor == nil {
		m.FailFor = make(map[string]error)
	}
	m.FailFor[depositor] = err
}

func (m *MockReleaser) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

var _ Releaser = (*MockReleaser)(nil)
