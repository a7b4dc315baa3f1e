package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tillworks/backend-pos/internal/auth"
	"github.com/tillworks/backend-pos/internal/cart"
	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/checkout"
	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/config"
	"github.com/tillworks/backend-pos/internal/customer"
	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/health"
	"github.com/tillworks/backend-pos/internal/inventory"
	"github.com/tillworks/backend-pos/internal/obs"
	"github.com/tillworks/backend-pos/internal/payment"
	"github.com/tillworks/backend-pos/internal/ratelimit"
	"github.com/tillworks/backend-pos/internal/receipt"
	"github.com/tillworks/backend-pos/internal/reports"
	"github.com/tillworks/backend-pos/internal/resilience"
	"github.com/tillworks/backend-pos/internal/sales"
	"github.com/tillworks/backend-pos/internal/security"
	"github.com/tillworks/backend-pos/internal/seed"
	"github.com/tillworks/backend-pos/internal/shift"
	"github.com/tillworks/backend-pos/internal/timeclock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	bootTime := time.Now().UTC()

	products := catalog.NewStore()
	if err := seed.Products(products, bootTime); err != nil {
		logger.Fatal().Err(err).Msg("seed products")
	}
	directory := auth.NewDirectory()
	if err := seed.Employees(directory, bootTime); err != nil {
		logger.Fatal().Err(err).Msg("seed employees")
	}
	customers := customer.NewStore()
	if err := seed.Customers(customers, bootTime); err != nil {
		logger.Fatal().Err(err).Msg("seed customers")
	}

	customerSvc := &customer.Service{Store: customers}
	customerHandler := customer.Handler{Svc: customerSvc}

	txnStore := sales.NewStore()

	bus := &events.Bus{}
	ledger := &shift.Ledger{Bus: bus, Logger: logger}
	shiftHandler := &shift.Handler{Ledger: ledger}

	bus.Notifiers = []events.Notifier{
		&inventory.StockAdjuster{Products: products, Bus: bus, Logger: logger},
		&receipt.Subscriber{
			Store:   receipt.StoreInfo{Name: envOrDefault("STORE_NAME", "Corner Market")},
			Printer: receipt.LogPrinter{Logger: logger},
			Logger:  logger,
		},
		&customer.LoyaltyAccrual{Svc: customerSvc, CentsPerPoint: cfg.LoyaltyCentsPerPt, Logger: logger},
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:  products,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	authService, err := auth.NewService(auth.Config{
		Directory:       directory,
		Secret:          cfg.JWTSecret,
		SessionTokenTTL: cfg.SessionTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMiddleware := auth.Middleware{Service: authService}

	cartSvc := &cart.Service{
		Store:    cart.NewStore(),
		Products: products,
		TaxBps:   cfg.TaxRateBPS,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	reader := &payment.SimulatedReader{
		Latency:     cfg.CardReaderLatency,
		DeclineOver: cfg.CardDeclineOver,
		Logger:      logger,
	}
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).
		WithTarget("card-reader").
		WithLogger(logger)
	provider := &payment.GuardedProvider{
		Inner:       reader,
		Breaker:     breaker,
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
	}

	salesSvc := &sales.Service{
		Store:  txnStore,
		Bus:    bus,
		Drawer: ledger,
		TaxBps: cfg.TaxRateBPS,
		Logger: logger,
	}
	salesHandler := &sales.Handler{Svc: salesSvc, Shifts: ledger}

	checkoutSvc := &checkout.Service{
		Carts:    cartSvc,
		Shifts:   ledger,
		Sales:    txnStore,
		Provider: provider,
		Bus:      bus,
		Logger:   logger,
	}
	checkoutHandler := checkout.Handler{Svc: checkoutSvc}

	clock := timeclock.NewClock()
	clockHandler := timeclock.Handler{Clock: clock}

	reportsSvc := &reports.Service{Sales: txnStore, Products: products}
	reportsHandler := reports.Handler{Svc: reportsSvc}

	idem := &common.Idem{TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Handler{
		Limiter: ratelimit.NewMemoryLimiter("ratelimit:"),
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(limiter.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", false)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checks: map[string]health.Probe{
			"catalog": func(context.Context) error {
				if len(products.All()) == 0 {
					return errors.New("catalog empty")
				}
				return nil
			},
			"card_reader": func(ctx context.Context) error {
				if !breaker.Allow(ctx) {
					return errors.New("card reader circuit open")
				}
				return nil
			},
		},
		Timeout: envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/auth/login", authHandler.Login)
		v.With(authMiddleware.RequireAuth).Get("/auth/me", authHandler.Me)

		v.Group(func(g chi.Router) {
			g.Use(authMiddleware.RequireAuth)
			g.Get("/products", catalogHandler.Products)
			g.Get("/products/lookup", catalogHandler.Lookup)
			g.Get("/products/low-stock", catalogHandler.LowStock)
			g.Get("/products/{id}", catalogHandler.ProductDetail)
			g.Get("/categories", catalogHandler.Categories)
		})

		v.Group(func(g chi.Router) {
			g.Use(authMiddleware.RequireRole(auth.RoleManager))
			g.Post("/products", catalogHandler.Create)
			g.Patch("/products/{id}", catalogHandler.Update)
			g.Post("/products/{id}/stock", catalogHandler.AdjustStock)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/lines", cartHandler.AddLine)
			c.Patch("/lines/{lineId}", cartHandler.UpdateLine)
			c.Delete("/lines/{lineId}", cartHandler.RemoveLine)
			c.Post("/lines/{lineId}/discount", cartHandler.Discount)
			c.Put("/tender-type", cartHandler.TenderType)
			c.Put("/customer", cartHandler.Customer)
			c.Post("/hold", cartHandler.Hold)
			c.Post("/resume/{cartId}", cartHandler.Resume)
			c.Get("/held", cartHandler.Held)
		})

		v.Route("/checkout", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", checkoutHandler.Current)
			c.Post("/", checkoutHandler.Begin)
			c.Post("/cancel", checkoutHandler.Cancel)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/tender", checkoutHandler.TenderCash)
				g.Post("/authorize", checkoutHandler.AuthorizeCard)
			})
		})

		v.Route("/sales", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.Get("/{txnId}", salesHandler.Get)
			s.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireRole(auth.RoleManager))
				g.Get("/", salesHandler.List)
				g.With(idem.Middleware).Post("/{txnId}/void", salesHandler.Void)
				g.With(idem.Middleware).Post("/{txnId}/return", salesHandler.Return)
			})
		})

		v.Route("/shifts", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.Post("/", shiftHandler.Start)
			s.Get("/current", shiftHandler.Current)
			s.Post("/current/reconcile", shiftHandler.Reconcile)
			s.With(authMiddleware.RequireRole(auth.RoleManager)).Get("/history", shiftHandler.History)
		})

		v.Route("/timeclock", func(tc chi.Router) {
			tc.Use(authMiddleware.RequireAuth)
			tc.Post("/clock-in", clockHandler.ClockIn)
			tc.Post("/clock-out", clockHandler.ClockOut)
			tc.Post("/break/start", clockHandler.StartBreak)
			tc.Post("/break/end", clockHandler.EndBreak)
			tc.Get("/current", clockHandler.Current)
		})

		v.Route("/customers", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", customerHandler.List)
			c.Post("/", customerHandler.Create)
			c.Get("/{id}", customerHandler.Detail)
			c.With(authMiddleware.RequireRole(auth.RoleManager)).Post("/{id}/credit", customerHandler.AdjustCredit)
		})

		v.Route("/reports", func(rep chi.Router) {
			rep.Use(authMiddleware.RequireRole(auth.RoleManager))
			rep.Get("/summary", reportsHandler.Summary)
			rep.Get("/hourly", reportsHandler.Hourly)
			rep.Get("/top-products", reportsHandler.TopProducts)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
