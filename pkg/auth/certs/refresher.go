package certs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/osvaldoandrade/tokengate/internal/backoff"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrRefresherStarted = errors.New("refresher already started")
	ErrRefresherStopped = errors.New("refresher stopped")
)

// maxStartupRetryDelay caps the retry delay while no set has been fetched yet.
const maxStartupRetryDelay = time.Minute

var tracer = otel.Tracer("github.com/osvaldoandrade/tokengate/pkg/auth/certs")

// Observer receives the outcome of every refresh attempt.
type Observer interface {
	RefreshSucceeded(count int, took time.Duration)
	RefreshFailed(err error, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) RefreshSucceeded(int, time.Duration) {}
func (nopObserver) RefreshFailed(error, time.Duration)  {}

type RefresherOption func(*Refresher)

func WithObserver(o Observer) RefresherOption {
	return func(r *Refresher) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock overrides the clock used to stamp fetched sets.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithStartupRetry sets the first delay between retries of a failed initial
// fetch. Zero disables startup retries; the schedule still applies.
func WithStartupRetry(base time.Duration) RefresherOption {
	return func(r *Refresher) {
		r.retryBase = base
	}
}

// Refresher keeps a Cache populated from a Fetcher. The first fetch runs
// synchronously in Start; later fetches run on a fixed interval. While the
// cache is still empty, failed fetches are also retried with jittered
// backoff. A failed fetch leaves the previously committed set in place.
type Refresher struct {
	fetcher  Fetcher
	cache    *Cache
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	retryBase time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cron    *cron.Cron
	cancel  context.CancelFunc
}

func NewRefresher(fetcher Fetcher, cache *Cache, interval, timeout time.Duration, logger *slog.Logger, opts ...RefresherOption) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		fetcher:   fetcher,
		cache:     cache,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		observer:  nopObserver{},
		now:       time.Now,
		retryBase: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RefreshOnce fetches certificates and commits them to the cache. On any
// failure, including an empty result, the cache is left untouched and the
// error is returned.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "certs.refresh")
	defer span.End()

	fetchCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	list, err := r.fetcher.Fetch(fetchCtx)
	if PartialResult(list, err) {
		r.logger.Warn("certificate refresh skipped undecodable keys", "err", err, "kept", len(list))
		span.AddEvent("keys skipped", trace.WithAttributes(attribute.String("err", err.Error())))
		err = nil
	}
	if err == nil && len(list) == 0 {
		err = ErrEmptySet
	}
	took := time.Since(start)

	if err != nil {
		if !errors.Is(err, ErrFetch) {
			err = fmt.Errorf("%w: %w", ErrFetch, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")

		prev, ok := r.cache.Current()
		attrs := []any{"err", err, "took", took}
		if ok {
			attrs = append(attrs, "retained", prev.Len(), "retainedFetchedAt", prev.FetchedAt())
		}
		r.logger.Warn("certificate refresh failed; keeping previous set", attrs...)
		r.observer.RefreshFailed(err, took)
		return err
	}

	set := NewSet(list, r.now())
	r.cache.Replace(set)
	span.SetAttributes(attribute.Int("certs.count", set.Len()))
	r.logger.Info("certificate set refreshed", "count", set.Len(), "took", took)
	r.observer.RefreshSucceeded(set.Len(), took)
	return nil
}

// Start performs an eager refresh and then schedules periodic refreshes.
// A failed first refresh is logged and does not prevent scheduling. If Stop
// runs while the first refresh is in flight, nothing is scheduled.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.stopped:
		r.mu.Unlock()
		return ErrRefresherStopped
	case r.started:
		r.mu.Unlock()
		return ErrRefresherStarted
	}
	r.started = true
	base, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	if err := r.RefreshOnce(base); err != nil && r.retryBase > 0 {
		go r.retryUntilReady(base)
	}

	cl := cronLogger{l: r.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(r.interval), cron.FuncJob(func() {
		_ = r.RefreshOnce(base)
	}))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		r.logger.Info("certificate refresher stopped before scheduling")
		return nil
	}
	r.cron = c
	c.Start()

	r.logger.Info("certificate refresher started", "interval", r.interval)
	return nil
}

func (r *Refresher) retryUntilReady(ctx context.Context) {
	maxDelay := maxStartupRetryDelay
	if r.interval > 0 && r.interval < maxDelay {
		maxDelay = r.interval
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		delay := backoff.Delay(backoff.EqualJitter, r.retryBase, maxDelay, attempt, rng)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, ok := r.cache.Current(); ok {
			return
		}
		r.logger.Debug("retrying initial certificate fetch", "attempt", attempt+1, "delay", delay)
		if r.RefreshOnce(ctx) == nil {
			return
		}
	}
}

// Stop halts scheduling and waits for an in-flight refresh until ctx is
// done, after which the refresh is cancelled. Stop during the first refresh
// cancels it and keeps Start from scheduling. A stopped refresher cannot be
// started again.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	c, cancel := r.cron, r.cancel
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		if cancel != nil {
			cancel()
		}
		return nil
	}
	defer cancel()

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
