package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	shutdownTimeout     = 5 * time.Second
	adminSubjectContext = "admin_subject"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Tracker *study.Tracker
	Engine  *study.Engine
	Ledger  *ledger.Service
	Rewards *rewards.Service
}

func (services Services) validate() error {
	if services.Tracker == nil {
		return fmt.Errorf("tracker dependency is nil")
	}
	if services.Engine == nil {
		return fmt.Errorf("engine dependency is nil")
	}
	if services.Ledger == nil {
		return fmt.Errorf("ledger dependency is nil")
	}
	if services.Rewards == nil {
		return fmt.Errorf("rewards dependency is nil")
	}
	return nil
}

// Run serves the HTTP surface until ctx is cancelled.
func Run(ctx context.Context, cfg Config, services Services, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	router, err := NewRouter(cfg, services, logger)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("studyd listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter validates cfg and builds the gin engine.
func NewRouter(cfg Config, services Services, logger *zap.Logger) (*gin.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := services.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := &httpHandler{logger: logger, services: services, cfg: cfg}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "active_sessions": services.Tracker.ActiveCount()})
	})

	api := router.Group("/api")
	api.POST("/presence", handler.handlePresence)
	api.GET("/leaderboard", handler.handleLeaderboard)

	users := api.Group("/users/:user_id")
	users.GET("/session", handler.handleSession)
	users.POST("/break", handler.handleBreak)
	users.GET("/standing", handler.handleStanding)
	users.GET("/balance", handler.handleBalance)
	users.GET("/transactions", handler.handleTransactions)
	users.GET("/rewards/:reward_id", handler.handleReward)
	users.GET("/boosters", handler.handleBoosters)
	users.PUT("/results-mode", handler.handleResultsMode)
	users.PUT("/leaderboard-opt-out", handler.handleLeaderboardOptOut)

	admin := api.Group("/admin")
	admin.Use(adminAuth([]byte(cfg.AdminSigningKey), cfg.AdminIssuer))
	admin.POST("/sessions/simulate", handler.handleSimulate)
	admin.POST("/sessions/:session_id/deduct", handler.handleDeduct)
	admin.POST("/users/:user_id/coins", handler.handleAdjustCoins)

	return router, nil
}
