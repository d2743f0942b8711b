package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yamdb/apiserver/config"
	"github.com/yamdb/apiserver/internal/access"
	"github.com/yamdb/apiserver/internal/auth"
	"github.com/yamdb/apiserver/internal/db"
	"github.com/yamdb/apiserver/internal/handlers"
	"github.com/yamdb/apiserver/internal/mailer"
	"github.com/yamdb/apiserver/internal/mq"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/internal/store"
)

const (
	// APIPrefix is where every resource route is mounted.
	APIPrefix = "/api/v1"

	requestTimeout = 60 * time.Second
)

// Services bundles the use-cases the router exposes.
type Services struct {
	Users      *services.UserService
	Identity   *services.IdentityService
	Categories *services.CatalogService
	Genres     *services.CatalogService
	Titles     *services.TitleService
	Reviews    *services.ReviewService
	Comments   *services.CommentService
	Tokens     handlers.TokenParser
}

// RouterOptions carries optional middleware. Nil rate limiters disable rate
// limiting.
type RouterOptions struct {
	Log       *slog.Logger
	AuthLimit func(http.Handler) http.Handler
	APILimit  func(http.Handler) http.Handler
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	limits     *rateLimits
	log        *slog.Logger
}

// New opens the database and builds repositories, services, the mailer and
// the router.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	codes, err := auth.NewCodeGenerator(cfg.Auth.ConfirmationSecret)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, log: log}

	var publisher mailer.Publisher
	if cfg.Mail.Backend == "queue" {
		s.queue, err = mq.Open(ctx, cfg.MQ)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		publisher = s.queue
	}
	sender, err := mailer.New(cfg.Mail, publisher, log)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	s.limits, err = newRateLimits(cfg.RateLimit)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)
	genreRepo := store.NewGenreRepository(dbConn)
	titleRepo := store.NewTitleRepository(dbConn)
	reviewRepo := store.NewReviewRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)

	reviewService := services.NewReviewService(reviewRepo, titleRepo)
	svc := Services{
		Users:      services.NewUserService(userRepo),
		Identity:   services.NewIdentityService(userRepo, codes, tokens, sender, log),
		Categories: services.NewCategoryService(categoryRepo),
		Genres:     services.NewGenreService(genreRepo),
		Titles:     services.NewTitleService(titleRepo, categoryRepo, genreRepo),
		Reviews:    reviewService,
		Comments:   services.NewCommentService(commentRepo, reviewService),
		Tokens:     tokens,
	}

	s.router = NewRouter(svc, RouterOptions{
		Log:       log,
		AuthLimit: s.limits.auth,
		APILimit:  s.limits.api,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter assembles middleware and routes over svc.
func NewRouter(svc Services, opts RouterOptions) *chi.Mux {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	passthrough := func(next http.Handler) http.Handler { return next }
	authLimit, apiLimit := opts.AuthLimit, opts.APILimit
	if authLimit == nil {
		authLimit = passthrough
	}
	if apiLimit == nil {
		apiLimit = passthrough
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)

	router.Route(APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimit)
			handlers.AuthRouter(r, svc.Identity, log)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiLimit, handlers.Authenticate(svc.Tokens, svc.Users, log))

			r.Route("/users", func(r chi.Router) {
				handlers.UserRouter(r, svc.Users, log)
			})
			r.Route("/categories", func(r chi.Router) {
				handlers.CatalogRouter(r, svc.Categories, access.Category, log)
			})
			r.Route("/genres", func(r chi.Router) {
				handlers.CatalogRouter(r, svc.Genres, access.Genre, log)
			})
			r.Route("/titles", func(r chi.Router) {
				handlers.TitleRouter(r, svc.Titles, log,
					handlers.ReviewRouter(svc.Reviews, svc.Comments, log))
			})
		})
	})
	return router
}

// Router exposes the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx expires, then releases the database, broker and rate limit store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Server) close() error {
	var errs []error
	if s.limits != nil {
		errs = append(errs, s.limits.Close())
	}
	if s.queue != nil {
		errs = append(errs, s.queue.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
