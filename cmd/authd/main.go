package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/netowork/go-auth"
	"github.com/netowork/go-auth/activitymap"
	"github.com/uptrace/bun"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile string) error {
	cfg, err := auth.LoadConfig(envFile)
	if err != nil {
		return err
	}

	lgr := auth.NewLogger("authd", cfg.LogLevel, cfg.LogFormat)
	logger := lgr.GetLogger("app")
	flows := lgr.GetLogger("flows")

	db, err := auth.OpenDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := auth.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		return err
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	var hasher auth.PasswordHasher = auth.NewBcryptHasher(cfg.BcryptCost)
	if cfg.PasswordHasher == "argon2id" {
		hasher = auth.NewArgon2idHasher(auth.DefaultArgon2idParams())
	}
	hashes := auth.NewHashPool(hasher, cfg.HashWorkers)

	templates, err := auth.NewEmailTemplates(cfg.ClientBaseURL)
	if err != nil {
		return err
	}

	var mailer auth.Mailer = auth.LogMailer{Logger: lgr.GetLogger("mailer")}
	if cfg.EmailAPIURL != "" {
		mailer = auth.NewHTTPMailer(cfg.EmailAPIURL, cfg.EmailAPIToken, cfg.EmailSender, cfg.EmailTimeout)
	} else {
		logger.Warn("EMAIL_API_URL not set, emails will only be logged")
	}

	verification := auth.NewTokenRegistry(
		auth.TokenKindVerification,
		repo.VerificationTokens(),
		cfg.VerificationTokenTTL,
		auth.WithRegistryTimeout(cfg.StoreTimeout),
	)
	resets := auth.NewTokenRegistry(
		auth.TokenKindPasswordReset,
		repo.PasswordResetTokens(),
		cfg.PasswordResetTokenTTL,
		auth.WithRegistryTimeout(cfg.StoreTimeout),
	)

	metrics := auth.NewMetrics()
	activity := auth.MultiActivitySink{metrics, activitymap.NewLogSink(lgr.GetLogger("activity"))}

	tokens := auth.NewTokenService(cfg, auth.WithTokenServiceLogger(lgr.GetLogger("tokens")))
	cookies := auth.NewCookieWriter(cfg)
	rotator := auth.NewRotator(tokens, sessions, repo.Principals()).
		WithActivitySink(activity).
		WithLogger(lgr.GetLogger("rotation"))
	mediator := auth.NewMediator(tokens, rotator, repo.Principals(), cookies).
		WithLogger(lgr.GetLogger("mediator"))

	handlers := auth.AuthHandlers{
		SignUp: auth.NewSignUpHandler(repo, hashes, verification, mailer, templates).
			WithActivitySink(activity).WithLogger(flows),
		SignIn: auth.NewSignInHandler(repo, hashes, tokens, sessions).
			WithActivitySink(activity).WithLogger(flows),
		VerifyAccount: auth.NewVerifyAccountHandler(repo, verification).
			WithActivitySink(activity).WithLogger(flows),
		ForgotPassword: auth.NewForgotPasswordHandler(repo, resets, mailer, templates).
			WithActivitySink(activity).WithLogger(flows),
		ResetPassword: auth.NewResetPasswordHandler(repo, resets, hashes).
			WithSingleUse(cfg.ResetTokenSingleUse).
			WithActivitySink(activity).WithLogger(flows),
		ResendVerification: auth.NewResendVerificationHandler(repo, verification, mailer, templates).
			WithActivitySink(activity).WithLogger(flows),
		SignOut: auth.NewSignOutHandler(sessions).
			WithActivitySink(activity).WithLogger(flows),
	}

	controller := auth.NewAuthController(repo, handlers, cookies,
		auth.WithControllerLogger(lgr.GetLogger("http")),
		auth.WithControllerDebug(cfg.Env == "development"),
	)

	limiter := auth.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go limiter.RunCleanup(time.Minute, stopCleanup)

	app := auth.NewHTTPApp(auth.AppOptions{
		Logger:         logger,
		Controller:     controller,
		Mediator:       mediator,
		Limiter:        limiter,
		Metrics:        metrics,
		RequestTimeout: cfg.RequestTimeout,
		Health: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "env", cfg.Env)
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func newSessionStore(ctx context.Context, cfg *auth.AppConfig, db *bun.DB) (auth.SessionStore, func(), error) {
	switch cfg.SessionStore {
	case "memory":
		return auth.NewMemorySessionStore(), func() {}, nil
	case "postgres":
		sessionDB, err := auth.OpenDB(auth.DriverPostgres, cfg.SessionDatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		err = auth.Migrate(ctx, sessionDB, auth.DriverPostgres)
		_ = sessionDB.Close()
		if err != nil {
			return nil, nil, err
		}

		pool, err := auth.NewPgxPool(ctx, cfg.SessionDatabaseURL, cfg.StoreTimeout)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewPgxSessionStore(pool, cfg.StoreTimeout), pool.Close, nil
	default:
		return auth.NewBunSessionStore(db, cfg.StoreTimeout), func() {}, nil
	}
}
