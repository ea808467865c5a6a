package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rights-monitor/backend/pkg/retry"
)

var ErrModelUnavailable = errors.New("model server is unavailable")

type State int

const (
	StateUnknown State = iota
	StateChecking
	StateStarting
	StateReady
	StateUnreachable
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateChecking:
		return "checking"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateUnreachable:
		return "unreachable"
	default:
		return "invalid"
	}
}

type SupervisorConfig struct {
	// Address is the host:port the model server listens on.
	Address       string
	StartCommand  []string
	ReadyAttempts int
	ReadyBackoff  time.Duration
	ProbeTimeout  time.Duration
	// ProbeInterval bounds how often a settled state is re-checked.
	ProbeInterval time.Duration
	OnStateChange func(from State, to State)
	Logger        *zap.Logger
}

// Supervisor makes sure the local model server accepts connections before a
// prompt is sent, launching it once when it is not running.
type Supervisor struct {
	address       string
	startCommand  []string
	readyAttempts int
	readyBackoff  time.Duration
	probeTimeout  time.Duration
	onStateChange func(from State, to State)
	logger        *zap.Logger
	limiter       *rate.Limiter

	probe func(ctx context.Context) error
	start func() error
	// launched is set while a server started by this supervisor may still be running.
	launched atomic.Bool

	mu    sync.Mutex
	state State
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	s := &Supervisor{
		address:       cfg.Address,
		startCommand:  cfg.StartCommand,
		readyAttempts: cfg.ReadyAttempts,
		readyBackoff:  cfg.ReadyBackoff,
		probeTimeout:  cfg.ProbeTimeout,
		onStateChange: cfg.OnStateChange,
		logger:        cfg.Logger,
	}

	if s.readyAttempts <= 0 {
		s.readyAttempts = 10
	}
	if s.readyBackoff <= 0 {
		s.readyBackoff = time.Second
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = time.Second
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.ProbeInterval > 0 {
		limit = rate.Every(cfg.ProbeInterval)
	}
	s.limiter = rate.NewLimiter(limit, 1)

	s.probe = s.dial
	s.start = s.launch

	return s
}

// EnsureReady reports whether the model server accepts connections. A ready
// or unreachable verdict is reused until the probe interval elapses.
func (s *Supervisor) EnsureReady(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.limiter.Allow()
	switch s.state {
	case StateReady:
		if !due {
			return true
		}
	case StateUnreachable:
		if !due {
			return false
		}
	}

	s.setState(StateChecking)
	if err := s.probe(ctx); err == nil {
		s.setState(StateReady)
		return true
	}

	if len(s.startCommand) == 0 {
		s.logger.Warn("Model server not reachable and no start command configured",
			zap.String("address", s.address),
		)
		s.setState(StateUnreachable)
		return false
	}

	s.setState(StateStarting)
	if s.launched.Load() {
		s.logger.Debug("Model server already launched, waiting for it", zap.String("address", s.address))
	} else {
		s.launched.Store(true)
		if err := s.start(); err != nil {
			s.launched.Store(false)
			s.logger.Error("Failed to start model server",
				zap.Strings("command", s.startCommand),
				zap.Error(err),
			)
			s.setState(StateUnreachable)
			return false
		}
	}

	cfg := retry.Fixed(s.readyAttempts, s.readyBackoff, s.logger)
	cfg.Operation = "model_server_ready"
	err := retry.Do(ctx, cfg, func() error {
		return s.probe(ctx)
	})
	if err != nil {
		s.logger.Warn("Model server did not become ready",
			zap.String("address", s.address),
			zap.Int("attempts", s.readyAttempts),
			zap.Error(err),
		)
		s.setState(StateUnreachable)
		return false
	}

	s.setState(StateReady)
	return true
}

// Invalidate forces the next EnsureReady to probe again.
func (s *Supervisor) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(StateUnknown)
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Supervisor) setState(state State) {
	if s.state == state {
		return
	}

	prev := s.state
	s.state = state

	if s.onStateChange != nil {
		s.onStateChange(prev, state)
	}

	s.logger.Info("Model server state changed",
		zap.String("address", s.address),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}

func (s *Supervisor) dial(ctx context.Context) error {
	d := net.Dialer{Timeout: s.probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to connect to model server: %w", err)
	}
	return conn.Close()
}

func (s *Supervisor) launch() error {
	cmd := exec.Command(s.startCommand[0], s.startCommand[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to run %s: %w", s.startCommand[0], err)
	}

	s.logger.Info("Model server launched",
		zap.Strings("command", s.startCommand),
		zap.Int("pid", cmd.Process.Pid),
	)

	go func() {
		err := cmd.Wait()
		s.launched.Store(false)
		s.logger.Warn("Model server process exited", zap.Error(err))
	}()

	return nil
}
