package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
)

// runLockoutPhase fires concurrent wrong-password attempts at one principal
// and checks that exactly one lock was triggered and the principal is
// locked afterwards.
func runLockoutPhase(ctx context.Context, engine *authcore.Engine, attempts int, locks <-chan authcore.LockoutState) error {
	threshold := engine.Config().Lockout.Threshold
	email := principalEmail(0)

	var (
		wg                      sync.WaitGroup
		invalid, locked, failed int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Authenticate(ctx, email, "wrong-password", authcore.ClientContext{IP: "127.0.0.1"})
			switch {
			case errors.Is(err, authcore.ErrInvalidCredentials):
				atomic.AddInt64(&invalid, 1)
			case errors.Is(err, authcore.ErrAccountLocked):
				atomic.AddInt64(&locked, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		}()
	}
	wg.Wait()

	st, err := engine.LockoutStatus(ctx, principalID(0))
	if err != nil {
		return err
	}
	notified := len(locks)

	log.Info().
		Int64("invalid", invalid).
		Int64("locked", locked).
		Int64("other", failed).
		Int("notifications", notified).
		Bool("locked_now", st.Locked).
		Msg("lockout phase")

	switch {
	case attempts >= threshold && notified != 1:
		return fmt.Errorf("expected exactly one lockout notification, got %d", notified)
	case attempts >= threshold && !st.Locked:
		return errors.New("principal not locked after threshold was crossed")
	case failed > 0:
		return fmt.Errorf("%d attempts failed with a backend error", failed)
	}
	return nil
}

// loginAll authenticates principals 1..n with bounded parallelism.
func loginAll(ctx context.Context, engine *authcore.Engine, n, concurrency int) ([]*authcore.TokenPair, error) {
	tokens := make([]*authcore.TokenPair, n)
	errs := make(chan error, 1)
	sem := make(chan struct{}, concurrency)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := engine.Authenticate(ctx, principalEmail(i+1), loadPassword, authcore.ClientContext{IP: "127.0.0.1"})
			if err != nil {
				select {
				case errs <- fmt.Errorf("login %s: %w", principalEmail(i+1), err):
				default:
				}
				return
			}
			tokens[i] = res.Tokens
		}(i)
	}
	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
	}
	log.Info().Int("sessions", n).Dur("took", time.Since(start).Round(time.Millisecond)).Msg("logged in")
	return tokens, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

// runPhase runs opts.ops calls of op across opts.concurrency workers,
// paced by a shared limiter when opts.rps is set.
func runPhase(ctx context.Context, opts options, op func(context.Context, int) error) phaseStats {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.rps), opts.concurrency)
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				if err := limiter.Wait(ctx); err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				t0 := time.Now()
				err := op(ctx, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
