package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/truthlens/backend/internal/governance"
)

var ErrAuditInProgress = errors.New("an audit is already in progress")

type State string

const (
	StateIdle      State = "IDLE"
	StateAnalyzing State = "ANALYZING"
	StateResults   State = "RESULTS"
	StateError     State = "ERROR"
)

// Runner executes one audit.
type Runner interface {
	Run(ctx context.Context, req Request) (*governance.AuditReport, error)
}

// Session tracks one client's audit lifecycle: IDLE, then ANALYZING, then
// RESULTS or ERROR, and back to IDLE on Reset. Only one audit may be in
// flight at a time.
type Session struct {
	runner Runner

	mu         sync.Mutex
	state      State
	report     *governance.AuditReport
	err        error
	cancel     context.CancelFunc
	generation uint64
}

func NewSession(runner Runner) *Session {
	return &Session{runner: runner, state: StateIdle}
}

// Start runs an audit and blocks until it finishes. It fails fast with
// ErrAuditInProgress while another audit is running. A Reset during the run
// cancels it and the outcome is not recorded.
func (s *Session) Start(ctx context.Context, req Request) (*governance.AuditReport, error) {
	run, err := s.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return run()
}

// Begin moves the session to ANALYZING and returns the function that runs
// the reserved audit. The caller must invoke it exactly once. If Reset comes
// first, the returned function reports context.Canceled without running.
func (s *Session) Begin(ctx context.Context, req Request) (func() (*governance.AuditReport, error), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing {
		return nil, ErrAuditInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	s.generation++
	gen := s.generation
	s.state = StateAnalyzing
	s.report = nil
	s.err = nil
	s.cancel = cancel

	return func() (*governance.AuditReport, error) {
		defer cancel()
		return s.run(ctx, gen, req)
	}, nil
}

func (s *Session) run(ctx context.Context, gen uint64, req Request) (*governance.AuditReport, error) {
	if !s.current(gen) {
		return nil, context.Canceled
	}

	report, err := s.runner.Run(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		if err == nil {
			err = context.Canceled
		}
		return nil, err
	}
	s.cancel = nil
	if err != nil {
		s.state = StateError
		s.err = err
		return nil, err
	}
	s.state = StateResults
	s.report = report
	return report, nil
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// Reset abandons any running audit and returns to IDLE.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.state = StateIdle
	s.report = nil
	s.err = nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Report returns the last completed report, or nil outside RESULTS.
func (s *Session) Report() *governance.AuditReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Err returns the failure that put the session in ERROR.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
