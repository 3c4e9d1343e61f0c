package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/bloglist/internal/auth"
	"github.com/2beens/bloglist/internal/blog"
	"github.com/2beens/bloglist/internal/config"
	"github.com/2beens/bloglist/internal/db"
	"github.com/2beens/bloglist/internal/middleware"
	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/telemetry/tracing"
	"github.com/2beens/bloglist/internal/users"
	"github.com/2beens/bloglist/pkg"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config       *config.Config
	dbPool       *pgxpool.Pool
	tokenService *auth.TokenService

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	tokenService, err := auth.NewTokenService(params.Config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("new token service: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		ConnString:     params.Config.DatabaseURL,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	if err := db.EnsureSchema(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, err
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "bloglist"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "bloglist", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "bloglist-backend")
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	return &Server{
		config:         params.Config,
		dbPool:         dbPool,
		tokenService:   tokenService,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	return newRouter(routerParams{
		blogRepo:       blog.NewRepo(s.dbPool),
		usersRepo:      users.NewRepo(s.dbPool),
		tokenService:   s.tokenService,
		passwordCost:   s.config.PasswordCost,
		corsOrigins:    s.config.CorsAllowedOrigins,
		metricsManager: s.metricsManager,
		healthCheck:    s.dbPool.Ping,
	})
}

type routerParams struct {
	blogRepo       *blog.Repo
	usersRepo      *users.Repo
	tokenService   *auth.TokenService
	passwordCost   int
	corsOrigins    []string
	metricsManager *metrics.Manager
	healthCheck    func(ctx context.Context) error
}

func newRouter(params routerParams) *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("bloglist-router"))

	blog.NewHandler(params.blogRepo, params.metricsManager).SetupRoutes(r)
	users.NewHandler(params.usersRepo, params.passwordCost, params.metricsManager).SetupRoutes(r)
	users.NewLoginHandler(params.usersRepo, params.tokenService, params.passwordCost, params.metricsManager).SetupRoutes(r)

	r.HandleFunc("/api/health", func(w http.ResponseWriter, req *http.Request) {
		if err := params.healthCheck(req.Context()); err != nil {
			log.Errorf("health check: %s", err)
			pkg.WriteJSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		pkg.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}).Methods("GET", "OPTIONS").Name("health")

	// all the rest - unhandled paths
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Tracef("unknown endpoint reached: %s %s", req.Method, req.URL.Path)
		pkg.WriteJSONError(w, "unknown endpoint", http.StatusNotFound)
	}).Name("unknown")

	r.Use(middleware.PanicRecovery(params.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(params.metricsManager))
	r.Use(middleware.Cors(params.corsOrigins))
	r.Use(middleware.ExtractToken())
	r.Use(middleware.ResolveUser(params.tokenService))
	r.Use(middleware.DrainAndCloseRequest(maxRequestBodyBytes))

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown http server: %s", err)
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown metrics http server: %s", err)
		}
		log.Warnln("metrics server shut down")
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
