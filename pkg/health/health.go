// Package health serves the liveness and readiness endpoints.
//
// Every check runs in its own goroutine on a fixed interval. A check flips to
// unhealthy after failureThreshold consecutive failures and back to healthy
// after successThreshold consecutive successes, so a single slow ping does
// not take the service out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind tells which endpoint a check contributes to.
type Kind string

const (
	Liveness  Kind = "liveness"
	Readiness Kind = "readiness"
)

const (
	defaultTimeout          = 5 * time.Second
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// CheckOption configures a single check.
type CheckOption func(p *checker)

// WithTimeout bounds a single run of the check.
func WithTimeout(d time.Duration) CheckOption {
	return func(p *checker) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithThresholds sets how many consecutive failures mark the check unhealthy
// and how many consecutive successes mark it healthy again.
func WithThresholds(failures, successes int) CheckOption {
	return func(p *checker) {
		if failures > 0 {
			p.failureThreshold = failures
		}
		if successes > 0 {
			p.successThreshold = successes
		}
	}
}

// checker is one registered check. run is only called from the check's own
// goroutine, so the counters need no locking. healthy and lastErr are read
// by HTTP handlers.
type checker struct {
	name             string
	kind             Kind
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (p *checker) isHealthy() bool {
	return p.healthy.Load()
}

func (p *checker) getLastError() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// run executes the check once and reports whether the health state flipped.
func (p *checker) run(ctx context.Context) (flipped bool) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	was := p.healthy.Load()
	if err != nil {
		p.consecutiveOK = 0
		p.consecutiveFails++
		if p.consecutiveFails >= p.failureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.consecutiveFails = 0
		p.consecutiveOK++
		if p.consecutiveOK >= p.successThreshold {
			p.healthy.Store(true)
		}
	}
	return was != p.healthy.Load()
}

// Health tracks liveness and readiness of the service.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	// mu guards the checker list and cancel. Handlers copy the list under
	// RLock and then read checker state without it.
	mu       sync.RWMutex
	checkers []*checker
	cancel   context.CancelFunc
}

// New creates a Health in the not-ready state. Call SetReady(true) once
// initialization is done.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg.Named("health")}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted, such as goroutine count or GC pause.
func (h *Health) AddLivenessCheck(name string, check CheckFunc, opts ...CheckOption) {
	h.add(Liveness, name, check, opts)
}

// AddReadinessCheck registers a check that decides whether the service may
// receive traffic, such as database or broker connectivity.
func (h *Health) AddReadinessCheck(name string, check CheckFunc, opts ...CheckOption) {
	h.add(Readiness, name, check, opts)
}

func (h *Health) add(kind Kind, name string, check CheckFunc, opts []CheckOption) {
	p := &checker{
		name:             name,
		kind:             kind,
		timeout:          defaultTimeout,
		check:            check,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	p.healthy.Store(true)

	h.mu.Lock()
	h.checkers = append(h.checkers, p)
	h.mu.Unlock()
}

// Start runs every registered check at the given interval until Stop is
// called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checkers := slices.Clone(h.checkers)
	h.mu.Unlock()

	for _, p := range checkers {
		go h.loop(ctx, p, interval)
	}
}

func (h *Health) loop(ctx context.Context, p *checker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.run(ctx) {
			h.logFlip(p)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) logFlip(p *checker) {
	fields := []zap.Field{
		zap.String("check", p.name),
		zap.String("kind", string(p.kind)),
	}
	if p.isHealthy() {
		h.lg.Info("Check recovered", fields...)
		return
	}
	h.lg.Warn("Check unhealthy", append(fields, zap.Error(p.getLastError()))...)
}

// SetReady marks the service ready or not ready independently of checks.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return len(h.failures(Readiness)) == 0
}

// Stop cancels the check goroutines. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} or 503 with the failing
// checks.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz. It fails while the service is not marked
// ready, reporting that as the _readiness check.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures = append(failures, failure{name: "_readiness", message: "service is not ready"})
	}
	writeResponse(w, failures)
}

type failure struct {
	name    string
	message string
}

// failures lists unhealthy checks of kind using the last stored result.
func (h *Health) failures(kind Kind) []failure {
	h.mu.RLock()
	checkers := slices.Clone(h.checkers)
	h.mu.RUnlock()

	var out []failure
	for _, p := range checkers {
		if p.kind != kind || p.isHealthy() {
			continue
		}
		msg := "check is unhealthy"
		if err := p.getLastError(); err != nil {
			msg = err.Error()
		}
		out = append(out, failure{name: p.name, message: msg})
	}
	return out
}

func writeResponse(w http.ResponseWriter, failures []failure) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, f := range failures {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(f.message) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
