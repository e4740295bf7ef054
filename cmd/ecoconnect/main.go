package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/erazemk/ecoconnect/internal/api"
	"github.com/erazemk/ecoconnect/internal/auth"
	"github.com/erazemk/ecoconnect/internal/config"
	"github.com/erazemk/ecoconnect/internal/db"
	"github.com/erazemk/ecoconnect/internal/ratelimit"
	"github.com/erazemk/ecoconnect/internal/store"
	"github.com/erazemk/ecoconnect/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Background maintenance intervals.
const (
	limiterSweepInterval = 5 * time.Minute
	tokenPurgeInterval   = time.Hour
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("ecoconnect", flag.ContinueOnError)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")

	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")

	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: ecoconnect [flags]

Flags:
  -d, -db <path>          SQLite database path (default: ecoconnect.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -log-level <level>      minimum log level: debug, info, warn, error (default: info)
  -h, -help               show this help and exit

Every flag can also be set through ECOCONNECT_* environment variables or a
.env file in the working directory. Flags win.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Schema and indexes (idempotent).
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A configured secret wins; otherwise one is generated on first run and
	// persisted so sessions survive restarts.
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return fmt.Errorf("loading jwt secret: %w", err)
		}
	}

	limits := api.Limits{
		Login:    ratelimit.PerWindow(cfg.LoginRate.Events, cfg.LoginRate.Window),
		Register: ratelimit.PerWindow(cfg.RegisterRate.Events, cfg.RegisterRate.Window),
		Messages: ratelimit.PerWindow(cfg.MessageRate.Events, cfg.MessageRate.Window),
		Uploads:  ratelimit.PerWindow(cfg.UploadRate.Events, cfg.UploadRate.Window),
	}
	hub := ws.NewHub()

	var wg sync.WaitGroup
	for _, l := range []*ratelimit.Limiter{limits.Login, limits.Register, limits.Messages, limits.Uploads} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Run(ctx, limiterSweepInterval, ratelimit.DefaultIdle)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		purgeRevokedTokens(ctx, database)
	}()

	handler := api.LoggingMiddleware(api.NewRouter(api.Options{
		DB:               database,
		Signer:           auth.NewSigner(jwtSecret, cfg.TokenExpiry),
		Hub:              hub,
		Limits:           limits,
		TrustProxy:       cfg.TrustProxy,
		CORSOrigins:      cfg.CORSOrigins,
		WSOriginPatterns: cfg.WSOriginPatterns,
		Version:          version,
	}))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")

		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "version", version)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		wg.Wait()
		return err
	}

	<-shutdownDone
	wg.Wait()
	slog.Info("server stopped, closing database")
	return nil
}

// purgeRevokedTokens periodically drops revocations of tokens that have
// expired on their own.
func purgeRevokedTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}
