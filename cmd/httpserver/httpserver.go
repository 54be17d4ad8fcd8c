// Package httpserver manages server creation and api routing.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/streampanel/creditgate/internal/accountdelivery"
	"github.com/streampanel/creditgate/internal/ledgerclient"
	"github.com/streampanel/creditgate/internal/middleware"
	"github.com/streampanel/creditgate/internal/orchestrator"
	"github.com/streampanel/creditgate/internal/policydelivery"
	"github.com/streampanel/creditgate/internal/policyservice"
	"github.com/streampanel/creditgate/internal/previewadapter"
	"github.com/streampanel/creditgate/internal/transactiondelivery"
	"github.com/streampanel/creditgate/pkg/configpkg"
	"github.com/streampanel/creditgate/pkg/tokenpkg"
)

// Server holds the router and configuration.
type Server struct {
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	ledgerClient := ledgerclient.New(config)
	policyService := policyservice.New(ledgerClient)
	registry := orchestrator.NewRegistry(ledgerClient, policyService)
	preview := previewadapter.New(config.DefaultLocale, config.DefaultCurrency)

	accountHandler := accountdelivery.NewHandler(ledgerClient)
	policyHandler := policydelivery.NewHandler(policyService)
	transactionHandler := transactiondelivery.NewHandler(
		func(username string) transactiondelivery.Orchestrator {
			return registry.For(username)
		},
		ledgerClient,
		preview,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.GET("/accounts/me", accountHandler.Me)
	authRoutes.GET("/accounts", accountHandler.List)

	authRoutes.GET("/capping-policy", policyHandler.Get)
	authRoutes.PUT("/capping-policy", policyHandler.Update)

	authRoutes.POST("/transactions/open", transactionHandler.Open)
	authRoutes.POST("/transactions/evaluate", transactionHandler.Evaluate)
	authRoutes.POST("/transactions", transactionHandler.Create)
	authRoutes.POST("/transactions/self-credit", transactionHandler.SelfCredit)
	authRoutes.POST("/transactions/reset", transactionHandler.Reset)
	authRoutes.GET("/transactions", transactionHandler.List)
	authRoutes.GET("/transactions/state", transactionHandler.State)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("txtype", transactiondelivery.ValidTransactionType); err != nil {
			return nil, errors.New("cannot register txtype validator")
		}

		if err := v.RegisterValidation("role", accountdelivery.ValidRole); err != nil {
			return nil, errors.New("cannot register role validator")
		}
	}

	server := &Server{
		Engine: engine,
		Config: config,
	}

	return server, nil
}
