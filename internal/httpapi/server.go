// Package httpapi exposes the ledger over HTTP with gin. Every JSON reply
// uses the {code, message, data} envelope.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/logger"
	"github.com/xtding233/wish-ledger/internal/pricing"
)

// MaxDrawsPerRequest caps count on the draw endpoint and draws on the quote endpoint.
const MaxDrawsPerRequest = ledger.MaxDrawsPerSession

// Service is the part of *ledger.Ledger the API needs.
type Service interface {
	PerformDraw(ctx context.Context, userID, bannerID int64, count int) (*ledger.DrawResult, error)
	Account(ctx context.Context, userID int64) (*ledger.User, error)
	Grant(ctx context.Context, userID, amount int64) (*ledger.User, error)
	Curve() *gacha.Curve
	Catalog() catalog.Provider
	Price() ledger.Price
}

type Options struct {
	// Mode is the gin mode: debug, release or test.
	Mode        string
	Shop        pricing.Shop
	Metrics     http.Handler // mounted at MetricsPath when non-nil
	MetricsPath string
	Logger      logger.Logger
}

type Server struct {
	engine *gin.Engine
	svc    Service
	shop   pricing.Shop
	log    logger.Logger
}

func New(svc Service, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoop()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	s := &Server{
		engine: gin.New(),
		svc:    svc,
		shop:   opts.Shop,
		log:    opts.Logger.Named("http"),
	}
	s.engine.Use(recovery(s.log), requestLogger(s.log))
	s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) {
	s.engine.GET("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		s.engine.GET(opts.MetricsPath, gin.WrapH(opts.Metrics))
	}

	v1 := s.engine.Group("/v1")
	v1.GET("/curve", s.handleCurve)
	v1.GET("/banners", s.handleBanners)
	v1.GET("/banners/:id/pool", s.handlePool)
	v1.GET("/quote/budget", s.handleBudget)

	users := v1.Group("/users/:id")
	users.GET("", s.handleAccount)
	users.POST("/draws", s.handleDraw)
	users.POST("/grants", s.handleGrant)
	users.GET("/quote", s.handleQuote)
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }
