package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/audit"
	auditrepo "secret-vault/backend/internal/audit/repository"
	biometricrepo "secret-vault/backend/internal/biometric/repository"
	biometricservice "secret-vault/backend/internal/biometric/service"
	categoryrepo "secret-vault/backend/internal/category/repository"
	categoryservice "secret-vault/backend/internal/category/service"
	"secret-vault/backend/internal/challenge"
	"secret-vault/backend/internal/config"
	"secret-vault/backend/internal/db"
	"secret-vault/backend/internal/health"
	identityservice "secret-vault/backend/internal/identity/service"
	"secret-vault/backend/internal/logging"
	"secret-vault/backend/internal/mailer"
	"secret-vault/backend/internal/mailer/resend"
	otprepo "secret-vault/backend/internal/otp/repository"
	otpservice "secret-vault/backend/internal/otp/service"
	"secret-vault/backend/internal/security"
	"secret-vault/backend/internal/server"
	"secret-vault/backend/internal/server/middleware"
	"secret-vault/backend/internal/telemetry"
	telemetryotel "secret-vault/backend/internal/telemetry/otel"
	userrepo "secret-vault/backend/internal/user/repository"
	"secret-vault/backend/internal/vault"
	vaultrepo "secret-vault/backend/internal/vault/repository"
	vaultservice "secret-vault/backend/internal/vault/service"
)

const shutdownTimeout = 15 * time.Second

// stores groups the persistence backends. Without DATABASE_URL every store is in-memory.
type stores struct {
	conn    *sql.DB
	users   userrepo.Repository
	codes   otprepo.Store
	creds   biometricrepo.Repository
	entries vaultrepo.Repository
	cats    categoryrepo.Repository
	audit   auditrepo.Repository
}

func openStores(ctx context.Context, dsn string) (*stores, error) {
	if dsn == "" {
		return &stores{
			users:   userrepo.NewMemoryRepository(),
			codes:   otprepo.NewMemoryStore(),
			creds:   biometricrepo.NewMemoryRepository(),
			entries: vaultrepo.NewMemoryRepository(),
			cats:    categoryrepo.NewMemoryRepository(),
			audit:   auditrepo.NewMemoryRepository(),
		}, nil
	}
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &stores{
		conn:    conn,
		users:   userrepo.NewPostgresRepository(conn),
		codes:   otprepo.NewPostgresStore(conn),
		creds:   biometricrepo.NewPostgresRepository(conn),
		entries: vaultrepo.NewPostgresRepository(conn),
		cats:    categoryrepo.NewPostgresRepository(conn),
		audit:   auditrepo.NewPostgresRepository(conn),
	}, nil
}

func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.UsesKeyPair() {
		priv, pub, err := security.LoadSigningKeys(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL(), cfg.ResetTokenTTL())
	}
	return security.NewHMACTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL(), cfg.ResetTokenTTL())
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env, "server")
	logging.SetGlobal(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure)
	if err != nil {
		log.Fatal().Err(err).Msg("otel")
	}
	providers.SetGlobal()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("secret-vault"))
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}

	st, err := openStores(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if st.conn == nil {
		log.Warn().Msg("DATABASE_URL not set; using in-memory stores")
	} else {
		defer st.conn.Close()
	}

	key, err := security.ParseKeyHex(cfg.CipherKey)
	if err != nil {
		log.Fatal().Err(err).Msg("cipher key")
	}
	cipher, err := security.NewCipher(key)
	if err != nil {
		log.Fatal().Err(err).Msg("cipher")
	}
	tokens, err := newTokenProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("token provider")
	}

	if cfg.ResendAPIKey == "" {
		log.Warn().Msg("RESEND_API_KEY not set; verification emails will fail")
	}
	resendClient, err := resend.NewClient(cfg.ResendAPIKey, cfg.ResendBaseURL, cfg.MailTimeout())
	if err != nil {
		log.Fatal().Err(err).Msg("resend")
	}
	mail := mailer.NewOTPMailer(resendClient, cfg.MailFrom)
	engine := otpservice.NewEngine(st.codes, mail,
		otpservice.WithTTL(cfg.OTPTTL()),
		otpservice.WithDispatchTimeout(cfg.MailTimeout()),
		otpservice.WithMetrics(metrics),
		otpservice.WithLogger(logger),
	)

	events := telemetry.MultiEmitter{
		telemetryotel.NewEventEmitter(providers.LoggerProvider),
		audit.NewLogger(st.audit, middleware.ClientIPFromContext),
	}
	categories := categoryservice.NewService(st.cats, st.entries, categoryservice.WithLogger(logger))
	auth := identityservice.NewAuthService(st.users, engine, security.NewHasher(cfg.BcryptCost), tokens, events)
	auth.SetAccountInitializer(categories)

	challenges := challenge.NewMemoryStore(challenge.DefaultTTL, nil)
	authenticator, err := biometricservice.NewAuthenticator(biometricservice.Config{
		RPID:          cfg.WebAuthnRPID,
		RPDisplayName: cfg.WebAuthnRPName,
		RPOrigins:     cfg.RPOrigins(),
	}, challenges, st.creds, st.users,
		biometricservice.WithMetrics(metrics),
		biometricservice.WithEventEmitter(events),
		biometricservice.WithLogger(logger),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("webauthn")
	}

	vaultSvc := vaultservice.NewService(st.entries, vault.NewSealer(cipher),
		vaultservice.WithCategories(categories),
		vaultservice.WithLogger(logger),
	)

	var pinger health.Pinger
	if st.conn != nil {
		pinger = st.conn
	}
	checker := health.NewChecker(pinger, 0, logger)

	var limiter *middleware.RateLimiter
	if cfg.AuthRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow())
		go limiter.RunPruner(ctx, cfg.ReaperInterval())
	}
	go challenges.RunPruner(ctx, cfg.ReaperInterval())
	go checker.Run(ctx)
	if st.conn == nil {
		// cmd/worker only reaps Postgres; in-memory codes are swept here.
		go otpservice.NewReaper(st.codes, cfg.ReaperInterval(), logger).Run(ctx)
	}

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHandler(server.Deps{
			Auth:           auth,
			Sessions:       tokens,
			Biometric:      authenticator,
			Categories:     categories,
			Vault:          vaultSvc,
			Activity:       st.audit,
			Health:         checker,
			AuthLimiter:    limiter,
			AllowedOrigins: cfg.AllowedOrigins(),
			TrustProxy:     cfg.TrustProxy,
			Log:            logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(checker.Server(), logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("listen")
	}
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC health server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
			stop()
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http serve")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()

	// Let in-flight async emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
}
