// guard.go - Timeout, circuit breaker and provider fallback around every vision call

package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/sony/gobreaker"
)

var (
	// ErrProviderUnavailable is returned while a provider's breaker is open
	ErrProviderUnavailable = errors.New("vision provider temporarily unavailable")
	// ErrTimeout is returned when a provider does not answer within the guard timeout
	ErrTimeout = errors.New("vision provider timed out")
)

// GuardConfig tunes the Guard
type GuardConfig struct {
	Timeout          time.Duration
	FailureThreshold uint32
	OpenDuration     time.Duration
}

// Guard wraps a primary and an optional fallback provider. Each provider gets its
// own breaker; when the primary fails or is short-circuited the fallback is tried.
type Guard struct {
	primary  VisionProvider
	fallback VisionProvider
	timeout  time.Duration
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewGuard builds a Guard. fallback may be nil.
func NewGuard(primary, fallback VisionProvider, cfg GuardConfig) *Guard {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = time.Minute
	}

	g := &Guard{
		primary:  primary,
		fallback: fallback,
		timeout:  cfg.Timeout,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, p := range []VisionProvider{primary, fallback} {
		if p == nil {
			continue
		}
		g.breakers[p.GetProviderName()] = newBreaker(p.GetProviderName(), cfg)
	}
	return g
}

func newBreaker(name string, cfg GuardConfig) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller walking away is not the provider's fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("🔌 circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// GetProviderName names the primary provider
func (g *Guard) GetProviderName() string {
	return g.primary.GetProviderName()
}

// BreakerState reports the breaker state of a named provider
func (g *Guard) BreakerState(provider string) string {
	if cb, ok := g.breakers[provider]; ok {
		return cb.State().String()
	}
	return ""
}

// ReadKhata implements VisionProvider
func (g *Guard) ReadKhata(ctx context.Context, req VisionRequest, reqCtx *common.RequestContext) (*VisionResult, error) {
	result, err := g.call(ctx, g.primary, req, reqCtx)
	if err == nil {
		return result, nil
	}
	if g.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	reqCtx.LogWarning("Primary provider %s failed (%v), trying fallback %s",
		g.primary.GetProviderName(), err, g.fallback.GetProviderName())

	result, fbErr := g.call(ctx, g.fallback, req, reqCtx)
	if fbErr != nil {
		return nil, fmt.Errorf("primary and fallback providers failed: %w (primary: %v)", fbErr, err)
	}
	result.FallbackUsed = true
	return result, nil
}

func (g *Guard) call(ctx context.Context, p VisionProvider, req VisionRequest, reqCtx *common.RequestContext) (*VisionResult, error) {
	cb := g.breakers[p.GetProviderName()]

	out, err := cb.Execute(func() (interface{}, error) {
		return g.raceTimeout(ctx, p, req, reqCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		reqCtx.LogWarning("Circuit open for %s, short-circuiting", p.GetProviderName())
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, p.GetProviderName())
	}
	if err != nil {
		return nil, err
	}
	return out.(*VisionResult), nil
}

type visionOutcome struct {
	result *VisionResult
	err    error
}

// raceTimeout returns whichever comes first: the provider's answer or the timer
func (g *Guard) raceTimeout(ctx context.Context, p VisionProvider, req VisionRequest, reqCtx *common.RequestContext) (*VisionResult, error) {
	callCtx := ctx
	cancel := func() {}
	if g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	defer cancel()

	done := make(chan visionOutcome, 1)
	go func() {
		r, err := p.ReadKhata(callCtx, req, reqCtx)
		done <- visionOutcome{result: r, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}
}
