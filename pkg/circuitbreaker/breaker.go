package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects calls before letting one probe through.
	Cooldown      time.Duration
	OnStateChange func(name string, from State, to State)
	Logger        *zap.Logger
}

// Breaker short-circuits calls to a dependency that keeps failing. After the
// cooldown a single call is let through; its outcome closes or reopens it.
type Breaker struct {
	name          string
	threshold     int
	cooldown      time.Duration
	onStateChange func(name string, from State, to State)
	logger        *zap.Logger
	now           func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func New(name string, cfg Config) *Breaker {
	b := &Breaker{
		name:          name,
		threshold:     cfg.FailureThreshold,
		cooldown:      cfg.Cooldown,
		onStateChange: cfg.OnStateChange,
		logger:        cfg.Logger,
		now:           time.Now,
	}

	if b.threshold <= 0 {
		b.threshold = 5
	}
	if b.cooldown <= 0 {
		b.cooldown = 30 * time.Second
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	return b
}

// Do runs fn unless the breaker is open. A nil return counts as success.
func (b *Breaker) Do(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	err := fn()
	b.release(err == nil)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) release(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if success {
		b.failures = 0
		b.setState(StateClosed)
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state

	if b.onStateChange != nil {
		b.onStateChange(b.name, prev, state)
	}

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
		zap.Int("failures", b.failures),
	)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}
