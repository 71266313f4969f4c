package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/common-nighthawk/go-figure"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/credentials"
	promexport "github.com/jonmaxmore/Botanical-Audit-Framework-sub006/metrics/export/prometheus"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/password"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

const (
	appName      = "authcore loadtest"
	loadPassword = "Loadtest-Pass1"
)

type options struct {
	principals  int
	concurrency int
	ops         int
	rps         float64
	redisAddr   string
	metricsAddr string
	attempts    int
	hold        time.Duration
}

func main() {
	var opts options
	flag.IntVar(&opts.principals, "principals", 1000, "number of principals to seed and log in")
	flag.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	flag.IntVar(&opts.ops, "ops", 100000, "operations per phase (validate, refresh)")
	flag.Float64Var(&opts.rps, "rps", 0, "operations per second across all workers; 0 is unpaced")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flag.IntVar(&opts.attempts, "lockout-attempts", 50, "concurrent wrong-password attempts against one principal")
	flag.DurationVar(&opts.hold, "hold", 0, "keep the metrics endpoint up this long after the run")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if opts.principals <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.attempts <= 0 {
		log.Fatal().Msg("principals, concurrency, ops and lockout-attempts must be > 0")
	}

	displayAppname(appName)

	if err := run(context.Background(), opts); err != nil {
		log.Fatal().Err(err).Msg("loadtest failed")
	}
}

func run(ctx context.Context, opts options) error {
	client, cleanup, err := connectRedis(opts.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := seedPrincipals(opts.principals)
	if err != nil {
		return err
	}

	locks := make(chan authcore.LockoutState, opts.attempts)
	engine, err := authcore.New().
		WithConfig(loadConfig()).
		WithRedis(client).
		WithCredentialStore(store).
		WithLogger(log.Logger).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		WithLockoutNotifier(func(_ context.Context, st authcore.LockoutState) { locks <- st }).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, engine)
		defer stop()
	}

	if err := runLockoutPhase(ctx, engine, opts.attempts, locks); err != nil {
		return err
	}

	tokens, err := loginAll(ctx, engine, opts.principals, opts.concurrency)
	if err != nil {
		return err
	}

	validate := runPhase(ctx, opts, func(ctx context.Context, i int) error {
		_, err := engine.ValidateToken(ctx, tokens[i%len(tokens)].AccessToken)
		return err
	})
	refresh := runPhase(ctx, opts, func(ctx context.Context, i int) error {
		_, err := engine.RefreshToken(ctx, tokens[i%len(tokens)].RefreshToken, authcore.ClientContext{IP: "127.0.0.1"})
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validate)
	printStats("refresh", refresh)

	snap := engine.MetricsSnapshot()
	log.Info().
		Uint64("auth_success", snap.Counters[authcore.MetricAuthSuccess]).
		Uint64("lockouts", snap.Counters[authcore.MetricLockoutTriggered]).
		Uint64("backend_unavailable", snap.Counters[authcore.MetricBackendUnavailable]).
		Msg("engine counters")

	if opts.hold > 0 && opts.metricsAddr != "" {
		log.Info().Dur("hold", opts.hold).Msg("holding metrics endpoint")
		time.Sleep(opts.hold)
	}
	return nil
}

// loadConfig keeps argon2 at its floor so the login phase measures the
// engine rather than the KDF.
func loadConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(getEnv("AUTHCORE_JWT_SECRET", "loadtest-secret-loadtest-secret-0"))
	cfg.JWT.Issuer = "authcore-loadtest"
	cfg.Password.Argon2 = password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	return cfg
}

func connectRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		log.Info().Str("addr", addr).Msg("using redis")
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	log.Info().Str("addr", mr.Addr()).Msg("using miniredis")
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedPrincipals(n int) (*credentials.MemoryStore, error) {
	h, err := password.NewHasher(loadConfig().Password.Argon2)
	if err != nil {
		return nil, err
	}
	hash, err := h.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	store := credentials.NewMemoryStore()
	roles := permission.AllRoles()
	now := time.Now()
	// principal 0 is reserved for the lockout phase
	for i := 0; i <= n; i++ {
		err := store.Put(authcore.Principal{
			ID:                principalID(i),
			Email:             principalEmail(i),
			Role:              roles[i%len(roles)],
			Active:            true,
			PasswordHash:      hash,
			PasswordChangedAt: now,
		})
		if err != nil {
			return nil, err
		}
	}
	log.Info().Int("principals", n).Msg("seeded credential store")
	return store, nil
}

func serveMetrics(addr string, engine *authcore.Engine) func() {
	reg := prom.NewRegistry()
	reg.MustRegister(promexport.NewCollector(engine))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving /metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func principalID(i int) string    { return fmt.Sprintf("p-%06d", i) }
func principalEmail(i int) string { return fmt.Sprintf("user%06d@loadtest.local", i) }

func getEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func displayAppname(name string) {
	myFigure := figure.NewFigure(name, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
