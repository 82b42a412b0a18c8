package server

import (
	"context"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"delivery-zoner/internal/config"
	"delivery-zoner/internal/database"
	"delivery-zoner/internal/geocoding"
	"delivery-zoner/internal/handlers"
	"delivery-zoner/internal/plan"
	"delivery-zoner/internal/postgres"
	"delivery-zoner/internal/sqlite"
	"delivery-zoner/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handler := &handlers.Handler{
		DB:       db,
		Geocoder: NewGeocoder(cfg, db),
		Plans:    plan.NewStore(cfg.ZoningParams(), cfg.Plans.MaxPlans),
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      NewRouter(handler, web.Static, cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.Server.Addr,
	}, nil
}

// OpenStore opens the configured persistence backend
func OpenStore(ctx context.Context, cfg *config.Config) (database.DataStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		zap.L().Info("server: initializing postgres store")
		store, err := postgres.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		path, err := cfg.SQLitePath()
		if err != nil {
			return nil, err
		}
		zap.L().Info("server: initializing sqlite store", zap.String("path", path))
		store, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// NewGeocoder builds the provider cascade: Yandex first when a key is
// configured, Nominatim otherwise, with the other as fallback.
func NewGeocoder(cfg *config.Config, db database.DataStore) *geocoding.Geocoder {
	gc := cfg.Geocoding
	nominatim := geocoding.NewNominatimProvider(gc.NominatimBaseURL, gc.UserAgent, gc.RatePerSec)

	var primary, secondary geocoding.Provider = nominatim, nil
	if gc.YandexAPIKey != "" {
		primary = geocoding.NewYandexProvider(gc.YandexAPIKey, gc.YandexBaseURL, gc.RatePerSec)
		secondary = nominatim
	}

	opts := []geocoding.GeocoderOption{geocoding.WithRequestDelay(cfg.RequestDelay())}
	if gc.CacheEnabled && db != nil {
		opts = append(opts, geocoding.WithCache(db.GeocodeCache()))
	}

	names := []string{primary.Name()}
	if secondary != nil {
		names = append(names, secondary.Name())
	}
	zap.L().Info("server: geocoder ready",
		zap.Strings("providers", names),
		zap.Bool("cache", gc.CacheEnabled),
	)
	return geocoding.NewGeocoder(primary, secondary, opts...)
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", eris.Wrap(err, "server: listen")
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	zap.L().Info("server: starting", zap.String("addr", actualAddr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			zap.L().Error("server: serve failed", zap.Error(err))
		}
	}()

	return actualAddr, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return s.db.Close()
}

// NewRouter configures all HTTP routes
func NewRouter(h *handlers.Handler, staticFS fs.FS, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/cells", h.HandleCells)
		r.Post("/orders/parse", h.HandleParseOrders)
		r.Delete("/geocode-cache", h.HandleClearGeocodeCache)

		r.Post("/plans", h.HandleCreatePlan)
		r.Route("/plans/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPlan)
			r.Delete("/", h.HandleDeletePlan)
			r.Post("/distribute", h.HandleDistribute)
			r.Post("/select", h.HandleSelectVariant)
			r.Get("/geojson", h.HandlePlanGeoJSON)
			r.Post("/commit", h.HandleCommitPlan)

			r.Route("/orders/{index}", func(r chi.Router) {
				r.Delete("/", h.HandleDeleteOrder)
				r.Post("/zone", h.HandleReassignOrder)
				r.Post("/place", h.HandlePlaceOrder)
				r.Post("/geocode", h.HandleRegeocodeOrder)
			})
		})

		r.Get("/routes", h.HandleListRoutes)
		r.Get("/routes/{id}", h.HandleGetRoute)
		r.Delete("/routes/{id}", h.HandleDeleteRoute)
	})

	if staticFS != nil {
		if sub, err := fs.Sub(staticFS, "static"); err == nil {
			r.Handle("/*", http.FileServer(http.FS(sub)))
		} else {
			zap.L().Warn("server: static files unavailable", zap.Error(err))
		}
	}

	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
