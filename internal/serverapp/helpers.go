package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"neo4j-graphql/internal/config"
	"neo4j-graphql/internal/logging"
	"neo4j-graphql/internal/middleware"
	"neo4j-graphql/internal/observability"
	"neo4j-graphql/internal/resolver"
	"neo4j-graphql/internal/schemarefresh"
	"neo4j-graphql/internal/tlscert"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultGraphQLPath = "/graphql"
	adminReloadPath    = "/admin/reload-schema"
)

func graphqlPath(cfg *config.Config) string {
	if p := strings.TrimSpace(cfg.Server.GraphQLPath); p != "" {
		return p
	}
	return defaultGraphQLPath
}

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	return middleware.OIDCAuthConfig{
		Enabled:        cfg.Server.Auth.OIDCEnabled,
		IssuerURL:      cfg.Server.Auth.OIDCIssuerURL,
		Audience:       cfg.Server.Auth.OIDCAudience,
		ClockSkew:      cfg.Server.Auth.OIDCClockSkew,
		CAFile:         cfg.Server.Auth.OIDCCAFile,
		AllowAnonymous: cfg.Server.Auth.AllowAnonymous,
	}
}

func jwtAuthConfig(cfg *config.Config) middleware.JWTAuthConfig {
	return middleware.JWTAuthConfig{
		Enabled:        cfg.Server.Auth.JWTEnabled,
		Secret:         cfg.Server.Auth.JWTSecret,
		Issuer:         cfg.Server.Auth.JWTIssuer,
		Audience:       cfg.Server.Auth.JWTAudience,
		ClockSkew:      cfg.Server.Auth.JWTClockSkew,
		AllowAnonymous: cfg.Server.Auth.AllowAnonymous,
	}
}

// bearerAuthMiddleware returns the configured token middleware, or nil when
// neither OIDC nor shared-secret JWT is enabled. allowAnonymous overrides
// the configured setting.
func bearerAuthMiddleware(cfg *config.Config, logger *logging.Logger, securityMetrics *observability.SecurityMetrics, allowAnonymous bool) (func(http.Handler) http.Handler, string, error) {
	switch {
	case cfg.Server.Auth.OIDCEnabled:
		oidcCfg := oidcAuthConfig(cfg)
		oidcCfg.AllowAnonymous = allowAnonymous
		mw, err := middleware.OIDCAuthMiddleware(oidcCfg, logger, securityMetrics)
		return mw, "oidc", err
	case cfg.Server.Auth.JWTEnabled:
		jwtCfg := jwtAuthConfig(cfg)
		jwtCfg.AllowAnonymous = allowAnonymous
		mw, err := middleware.JWTAuthMiddleware(jwtCfg, logger, securityMetrics)
		return mw, "jwt", err
	default:
		return nil, "", nil
	}
}

func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var current func() *resolver.Resolver
	if manager != nil {
		current = manager.Current
	} else {
		current = func() *resolver.Resolver { return nil }
	}
	graphqlHandler := resolver.NewHandler(current, middleware.ClaimsFromContext)

	tracingHandler := middleware.GraphQLTracingMiddleware()(graphqlHandler)

	metricsHandler := tracingHandler
	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		metricsHandler = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(tracingHandler)
		logger.Info("GraphQL metrics middleware enabled")
	}

	// Middleware order: token auth runs outermost, then impersonation, then
	// request analysis which reads the results of both. The chain is:
	//   request -> logging -> auth -> impersonation -> analysis -> metrics -> tracing -> graphql
	analysisHandler := middleware.GraphQLRequestAnalysisMiddleware(manager)(metricsHandler)

	impersonationHandler := analysisHandler
	if cfg.Server.Auth.ImpersonationEnabled {
		impersonationHandler = middleware.ImpersonationMiddleware(
			cfg.Server.Auth.ImpersonationClaim,
			cfg.Server.Auth.ImpersonationAllowedUsers,
		)(analysisHandler)
		logger.Info("impersonation middleware enabled",
			slog.String("claim", cfg.Server.Auth.ImpersonationClaim),
			slog.Int("allowed_users", len(cfg.Server.Auth.ImpersonationAllowedUsers)),
		)
	}

	authHandler := impersonationHandler
	authMiddleware, mode, err := bearerAuthMiddleware(cfg, logger, securityMetrics, cfg.Server.Auth.AllowAnonymous)
	if err != nil {
		return nil, err
	}
	if authMiddleware != nil {
		authHandler = authMiddleware(impersonationHandler)
		logger.Info("auth middleware enabled",
			slog.String("mode", mode),
			slog.Bool("allow_anonymous", cfg.Server.Auth.AllowAnonymous),
		)
	}

	return middleware.LoggingMiddleware(logger)(authHandler), nil
}

// buildAdminHandler protects schema reload with the admin token when one is
// configured and with bearer auth otherwise. Anonymous access is never
// allowed here.
func buildAdminHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var adminHandler http.Handler = http.HandlerFunc(schemaReloadHandler(manager, securityMetrics))

	if strings.TrimSpace(cfg.Server.Admin.AuthToken) != "" {
		tokenMiddleware, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
			Token:   cfg.Server.Admin.AuthToken,
			Metrics: securityMetrics,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("admin endpoints require admin token")
		return middleware.LoggingMiddleware(logger)(tokenMiddleware(adminHandler)), nil
	}

	authMiddleware, mode, err := bearerAuthMiddleware(cfg, logger, securityMetrics, false)
	if err != nil {
		return nil, err
	}
	if authMiddleware != nil {
		adminHandler = authMiddleware(adminHandler)
		logger.Info("admin endpoints require authentication", slog.String("mode", mode))
	} else {
		logger.Warn("admin endpoints are not authenticated - consider configuring an admin token")
	}
	return middleware.LoggingMiddleware(logger)(adminHandler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, checker connectivityChecker, graphqlHandler http.Handler, adminHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	gqlPath := graphqlPath(cfg)

	mux := http.NewServeMux()
	mux.Handle(gqlPath, graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, gqlPath, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler(checker, cfg.Server.HealthCheckTimeout))
	if cfg.Server.Admin.SchemaReloadEnabled {
		mux.Handle(adminReloadPath, adminHandler)
		logger.Info("schema reload endpoint enabled", slog.String("path", adminReloadPath))
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r, graphqlPath(cfg))
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request, gqlPath string) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path, gqlPath)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality by collapsing
// unknown paths.
func normalizeHTTPSpanRoute(rawPath, gqlPath string) string {
	if rawPath == gqlPath && rawPath != "" {
		return rawPath
	}
	switch rawPath {
	case "/", "/health", "/metrics", adminReloadPath:
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler, serverAddr string) (*http.Server, *tlscert.Source, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tlsSource, err := tlscert.Open(tlscert.Options{
		Mode:     tlscert.Mode(cfg.Server.TLSMode),
		CertFile: cfg.Server.TLSCertFile,
		KeyFile:  cfg.Server.TLSKeyFile,
		Dir:      cfg.Server.TLSAutoCertDir,
	}, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	if tlsSource != nil {
		srv.TLSConfig = tlsSource.ServerConfig()
		logger.Info("TLS enabled",
			slog.String("mode", cfg.Server.TLSMode),
			slog.String("cert_source", tlsSource.Description()))
	}

	return srv, tlsSource, nil
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
	go func() {
		protocol := "http"
		if tlsEnabled {
			protocol = "https"
		}

		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", graphqlPath(cfg)),
			slog.String("health_endpoint", "/health"),
			slog.Int("graphql_max_depth", cfg.Translation.MaxDepth),
			slog.String("typedefs_file", cfg.Schema.TypeDefsFile),
			slog.String("log_level", cfg.Observability.Logging.Level),
			slog.String("log_format", cfg.Observability.Logging.Format),
		}

		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}

		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}

		if tlsEnabled {
			logAttrs = append(logAttrs,
				slog.Bool("tls_enabled", true),
				slog.String("tls_mode", cfg.Server.TLSMode))
		} else {
			logAttrs = append(logAttrs, slog.Bool("tls_enabled", false))
		}

		logger.Info("server starting", logAttrs...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler reports whether the database is reachable.
func healthHandler(checker connectivityChecker, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var err error
		if checker == nil {
			err = fmt.Errorf("neo4j driver is not configured")
		} else {
			err = checker.VerifyConnectivity(ctx)
		}
		if err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "neo4j"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			// Generic body; driver errors can carry addresses.
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","neo4j":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","neo4j":"ok"}`)
	}
}

func schemaReloadHandler(manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = fmt.Fprint(w, `{"error":"method not allowed"}`)
			return
		}

		authCtx, authenticated := middleware.AuthFromContext(r.Context())
		logAttrs := []any{
			slog.String("operation", "schema_reload"),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Bool("authenticated", authenticated),
		}
		if authenticated {
			logAttrs = append(logAttrs,
				slog.String("authenticated_user", authCtx.Subject),
				slog.String("issuer", authCtx.Issuer),
			)
		}
		reqLogger.Info("admin endpoint accessed", logAttrs...)

		if manager == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"error","message":"schema manager not running"}`)
			return
		}

		refreshCtx, refreshCancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer refreshCancel()

		if err := manager.RefreshNowContext(refreshCtx); err != nil {
			if securityMetrics != nil {
				securityMetrics.RecordAdminEndpointAccess(r.Context(), "schema_reload", authenticated, false)
			}
			reqLogger.Error("schema reload failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			// The previous schema stays active; details are in the log.
			_, _ = fmt.Fprint(w, `{"status":"error","message":"schema reload failed"}`)
			return
		}

		if securityMetrics != nil {
			securityMetrics.RecordAdminEndpointAccess(r.Context(), "schema_reload", authenticated, true)
		}

		reqLogger.Info("schema reloaded successfully", append(logAttrs, slog.String("fingerprint", manager.Fingerprint()))...)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","fingerprint":%q}`, manager.Fingerprint())
	}
}
