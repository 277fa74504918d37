package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-server/auth"
	"github.com/jrsteele09/go-session-server/credentials"
	fakehistoryrepo "github.com/jrsteele09/go-session-server/credentials/repofake"
	"github.com/jrsteele09/go-session-server/federation"
	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/jrsteele09/go-session-server/internal/db"
	"github.com/jrsteele09/go-session-server/internal/logging"
	"github.com/jrsteele09/go-session-server/kvstore"
	"github.com/jrsteele09/go-session-server/kvstore/memstore"
	"github.com/jrsteele09/go-session-server/mfa"
	"github.com/jrsteele09/go-session-server/notify"
	"github.com/jrsteele09/go-session-server/server"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/jrsteele09/go-session-server/storage/postgres"
	"github.com/jrsteele09/go-session-server/token"
	"github.com/jrsteele09/go-session-server/users"
	fakeuserrepo "github.com/jrsteele09/go-session-server/users/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	logger := logging.Setup(cfg)
	displayAppname(cfg.GetAppName())

	ctx := context.Background()
	kv, closeKV, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	userRepo, historyRepo, closeDB, err := openRepos(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	authService, err := buildAuthService(cfg, kv, userRepo, historyRepo, logger)
	if err != nil {
		return err
	}

	var opts []server.ServerOption
	opts = append(opts, server.WithLogger(logger))
	if cfg.FederationEnabled() {
		provider, err := federation.NewProvider(ctx, cfg)
		if err != nil {
			return errors.Wrap(err, "oidc provider")
		}
		opts = append(opts, server.WithProvider(provider))
		logger.Info().Str("provider", provider.Name()).Msg("federated login enabled")
	}

	handler, err := server.New(cfg, authService, kv, opts...)
	if err != nil {
		return errors.Wrap(err, "server")
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(srv, logger)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// openStore connects to Redis, or falls back to an in-process store when no
// address is configured.
func openStore(ctx context.Context, cfg *config.Settings, logger zerolog.Logger) (kvstore.Store, func(), error) {
	if cfg.GetRedisAddr() == "" {
		logger.Warn().Msg("REDIS_ADDR not set, using in-memory store")
		return memstore.New(), func() {}, nil
	}
	store, err := kvstore.Dial(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "redis")
	}
	logger.Info().Str("addr", cfg.GetRedisAddr()).Msg("connected to redis")
	return store, func() { _ = store.Close() }, nil
}

// openRepos connects to Postgres, or falls back to in-memory repositories
// when no database is configured.
func openRepos(ctx context.Context, cfg *config.Settings, logger zerolog.Logger) (users.Repo, credentials.HistoryRepo, func(), error) {
	if cfg.GetDatabaseURL() == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory user repository")
		return fakeuserrepo.NewFakeUserRepo(), fakehistoryrepo.NewFakeHistoryRepo(), func() {}, nil
	}
	conn, err := db.Open(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "database")
	}
	logger.Info().Msg("connected to postgres")
	return postgres.NewUserRepo(conn), postgres.NewHistoryRepo(conn), func() { _ = conn.Close() }, nil
}

func buildAuthService(cfg *config.Settings, kv kvstore.Store, userRepo users.Repo, historyRepo credentials.HistoryRepo, logger zerolog.Logger) (*auth.AuthorizationService, error) {
	signer, err := token.NewSignerFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "token signer")
	}
	codec, err := token.NewCodec(signer, token.WithIssuer(cfg.GetJWTIssuer()))
	if err != nil {
		return nil, errors.Wrap(err, "token codec")
	}
	sessionStore, err := sessions.NewStore(kv, codec, sessions.WithConfig(cfg), sessions.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "session store")
	}
	credentialStore, err := credentials.NewStore(historyRepo, credentials.WithConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "credential store")
	}
	engine, err := mfa.NewEngine(kv, mfa.WithConfig(cfg), mfa.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "mfa engine")
	}
	return auth.NewAuthorizationService(auth.Components{
		Users:       userRepo,
		Sessions:    sessionStore,
		Credentials: credentialStore,
		MFA:         engine,
		Tokens:      codec,
		Notifier:    notify.FromConfig(cfg, logger),
		KV:          kv,
	}, auth.WithConfig(cfg), auth.WithLogger(logger))
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
