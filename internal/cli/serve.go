package cli

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/grpcguard"
	promexport "github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type serveOptions struct {
	configPath string
	listen     string
	grpcListen string
	auditDB    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo server behind the guard",
		Long: `serve starts an HTTP server whose routes are protected by the configured
rate limits, session checks, and role table. POST /login issues a token for
{"user_id": "...", "role": "..."}; POST /logout revokes it. /metrics and
/healthz are served outside the guard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a goguard YAML config file")
	cmd.Flags().StringVar(&opts.listen, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.grpcListen, "grpc-listen", "", "Optional gRPC listen address for the guarded health service")
	cmd.Flags().StringVar(&opts.auditDB, "audit-db", "", "Persist security events to this SQLite file")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := loadServeConfig(opts.configPath)
	if err != nil {
		return err
	}

	client, cleanup, err := openRedis(ctx, flagRedisAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	builder := goGuard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger)

	if opts.auditDB != "" {
		sqlSink, err := goGuard.NewSQLiteSink(opts.auditDB, logger)
		if err != nil {
			return err
		}
		defer sqlSink.Close()
		builder = builder.WithAuditSink(goGuard.MultiSink{goGuard.NewSlogSink(logger), sqlSink})
		logger.Info("audit database ready", "path", opts.auditDB)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	for _, w := range report.Warnings {
		logger.Warn("security posture", "warning", w)
	}

	exporter, err := promexport.NewExporter(engine)
	if err != nil {
		return fmt.Errorf("metrics exporter: %w", err)
	}

	httpServer := &http.Server{
		Addr:              opts.listen,
		Handler:           newRouter(engine, exporter.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("server starting", "addr", opts.listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcServer *grpc.Server
	if opts.grpcListen != "" {
		lis, err := net.Listen("tcp", opts.grpcListen)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", opts.grpcListen, err)
		}
		grpcServer = newGRPCServer(engine)
		go func() {
			logger.Info("grpc server starting", "addr", opts.grpcListen)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}
	logger.Info("shutting down")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// loadServeConfig reads path, or starts from the defaults with demo routes. A config
// without key material gets an ephemeral Ed25519 key pair.
func loadServeConfig(path string) (goGuard.Config, error) {
	cfg := goGuard.DefaultConfig()
	if path != "" {
		loaded, err := goGuard.LoadConfigFile(path)
		if err != nil {
			return goGuard.Config{}, err
		}
		cfg = loaded
	}
	if len(cfg.Routes) == 0 {
		cfg.Routes = demoRoutes()
	}

	generated, err := ensureSigningKey(&cfg)
	if err != nil {
		return goGuard.Config{}, err
	}
	if generated {
		logger.Warn("no signing key configured, using an ephemeral ed25519 key")
	}
	return cfg, nil
}

// ensureSigningKey fills cfg with a fresh Ed25519 key pair when it has no key material.
func ensureSigningKey(cfg *goGuard.Config) (bool, error) {
	if cfg.Token.JWKSURL != "" || len(cfg.Token.PrivateKey) > 0 || len(cfg.Token.PublicKey) > 0 {
		return false, nil
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return false, fmt.Errorf("generate signing key: %w", err)
	}
	cfg.Token.SigningMethod = "ed25519"
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	return true, nil
}

func demoRoutes() []goGuard.Route {
	return []goGuard.Route{
		{Prefix: "/login", Login: true},
		{Prefix: "/logout", RequireAuth: true},
		{Prefix: "/api/posts", RequireAuth: true, Action: "read", Resource: "posts"},
		{Prefix: "/api/users", RequireAuth: true, Action: "delete", Resource: "users"},
		{Prefix: "/api", RequireAuth: true},
	}
}

func newRouter(engine *goGuard.Engine, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", metrics)
	r.Get("/healthz", healthHandler(engine))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine))
		r.Post("/login", loginHandler(engine))
		r.Method(http.MethodPost, "/logout", middleware.LogoutHandler(engine))
		r.Get("/api/*", whoamiHandler)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func loginHandler(engine *goGuard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and role are required"})
			return
		}

		token, jti, err := engine.IssueToken(req.UserID, req.Role)
		if err != nil {
			if errors.Is(err, goGuard.ErrForbidden) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			logger.Error("issue token failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "unavailable"})
			return
		}

		goGuard.MarkLogin(r.Context(), req.UserID, jti)
		writeJSON(w, http.StatusOK, map[string]string{
			"access_token": token,
			"token_type":   "Bearer",
		})
	}
}

func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := goGuard.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":       r.URL.Path,
		"user_id":    sess.UserID,
		"role":       sess.Role,
		"session_id": sess.ID,
	})
}

func healthHandler(engine *goGuard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := engine.Health(r.Context())
		status := http.StatusOK
		if !h.StoreAvailable {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"store_available": h.StoreAvailable,
			"store_latency":   h.StoreLatency.String(),
		})
	}
}

func newGRPCServer(engine *goGuard.Engine) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcguard.UnaryServerInterceptor(engine, logger)),
		grpc.ChainStreamInterceptor(grpcguard.StreamServerInterceptor(engine, logger)),
	)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
