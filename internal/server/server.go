package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/azaliaz/bookstore/internal/auth"
	"github.com/azaliaz/bookstore/internal/config"
	"github.com/azaliaz/bookstore/internal/domain/consts"
	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
)

//go:generate mockgen -source=server.go -destination=./mocks/storage_mock.go -package=mocks

type Storage interface {
	Ping(ctx context.Context) error
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	SaveBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBook(ctx context.Context, bid string) (models.Book, error)
	UpdateBook(ctx context.Context, bid string, patch models.BookPatch) (models.Book, error)
	DeleteBook(ctx context.Context, bid string) error
	ListBooks(ctx context.Context, q models.BookQuery) ([]models.Book, int64, error)
}

type Server struct {
	serv    *http.Server
	valid   *validator.Validate
	Storage Storage
	tokens  *auth.Issuer
	metrics *metrics
}

func New(cfg config.Config, stor Storage) *Server {
	server := http.Server{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{
		serv:    &server,
		valid:   newValidator(),
		Storage: stor,
		tokens:  auth.NewIssuer(cfg.JWTSecret, consts.TokenTTL),
		metrics: newMetrics(),
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		s.requestLogger(),
		s.metrics.middleware(),
		gin.CustomRecovery(recoverPanic),
		errorHandler(),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}),
	)
	router.NoRoute(func(ctx *gin.Context) { writeError(ctx, http.StatusNotFound, "Route not found") })

	router.GET("/", func(ctx *gin.Context) { ctx.String(http.StatusOK, "Hello") })
	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(s.metrics.handler()))

	api := router.Group("/api")
	users := api.Group("/auth")
	{
		users.POST("/signup", s.Register)
		users.POST("/login", s.Login)
	}
	books := api.Group("/books", s.JWTAuthMiddleware())
	{
		books.POST("", s.AddBook)
		books.GET("", s.AllBooks)
		books.GET("/:id", s.BookInfo)
		books.PUT("/:id", s.UpdateBook)
		books.DELETE("/:id", s.RemoveBook)
	}
	return router
}

// Run serves until ShutdownServer is called.
func (s *Server) Run(_ context.Context) error {
	log := logger.Get()
	s.serv.Handler = s.Router()
	log.Info().Str("host", s.serv.Addr).Msg("server started")
	if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ShutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.serv.Shutdown(ctx)
}

func (s *Server) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), consts.DBCtxTimeout)
	defer cancel()
	if err := s.Storage.Ping(pingCtx); err != nil {
		log := logger.Get()
		log.Error().Err(err).Msg("storage ping failed")
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log := logger.Get()
		ev := log.Info()
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", ctx.ClientIP()).
			Msg("request")
	}
}
