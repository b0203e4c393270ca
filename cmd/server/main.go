// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	_ "openbci-service/docs"
	"openbci-service/internal/config"
	"openbci-service/internal/routes"
	"openbci-service/internal/service"
	"openbci-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
	router       *routes.Router
	boardService *service.BoardService
}

// @title OpenBCI Board Service API
// @version 1.0.0
// @description Connection, streaming, channel configuration and impedance testing for OpenBCI Cyton boards

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	utils.NewServiceLogger(logger, cfg.App.Name).LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config:       cfg,
		logger:       logger,
		boardService: service.NewBoardService(cfg, logger),
	}
	app.initializeServer()
	return app, nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(app.config, app.logger, app.boardService)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.GetServerAddr()))
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down
func (app *Application) Start() error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if app.config.Board.AutoConnect {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		if _, err := app.boardService.Connect(ctx, service.ConnectRequest{}); err != nil {
			app.logger.Error("Auto-connect failed", zap.Error(err))
		}
		cancel()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		app.shutdown("shutdown signal received")
		return nil
	case err := <-errCh:
		app.shutdown("server error")
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
}

// shutdown closes the board, stream clients and HTTP server in that order
func (app *Application) shutdown(reason string) {
	utils.NewServiceLogger(app.logger, app.config.App.Name).LogServiceStop(reason)

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.boardService.Shutdown(ctx); err != nil {
		app.logger.Error("Board shutdown error", zap.Error(err))
	}
	if ws := app.router.WebSocketHandler(); ws != nil {
		ws.Connections().CloseAll()
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}
