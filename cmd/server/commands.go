// cmd/server/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javajoker/songgate/internal/config"
	"github.com/javajoker/songgate/internal/database"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/router"
	"github.com/javajoker/songgate/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Mint LEDGER_TOTAL_SUPPLY to LEDGER_TREASURY_ID",
	Long: `genesis initializes the internal ledger once. Running it again with the
same treasury and supply does nothing; different values are rejected.`,
	RunE: runGenesis,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if listenPort != "" {
		cfg.Server.Port = listenPort
	}

	st, closeStore, err := openStore(cfg, logger, !skipMigrate)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := router.NewServices(cfg, st, logger)
	if err != nil {
		return err
	}

	if cfg.Ledger.TreasuryID != "" {
		if err := genesis(cmd.Context(), cfg, svc.Ledger, logger); err != nil {
			logger.WithError(err).Warn("Ledger genesis skipped")
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router.Setup(cfg, st, svc, logger),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db, logger)

	return database.RunMigrations(db, logger)
}

func runGenesis(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.Ledger.TreasuryID == "" {
		return fmt.Errorf("LEDGER_TREASURY_ID is required")
	}

	st, closeStore, err := openStore(cfg, logger, true)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier := services.NewNotificationService(st, logger)
	return genesis(cmd.Context(), cfg, services.NewLedgerService(st, notifier), logger)
}

func genesis(ctx context.Context, cfg *config.Config, ledger *services.LedgerService, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	treasury, err := uuid.Parse(cfg.Ledger.TreasuryID)
	if err != nil {
		return fmt.Errorf("invalid LEDGER_TREASURY_ID: %w", err)
	}
	supply, err := models.ParseAmount(cfg.Ledger.TotalSupply)
	if err != nil {
		return fmt.Errorf("invalid LEDGER_TOTAL_SUPPLY: %w", err)
	}

	row, err := ledger.Genesis(ctx, treasury, supply)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"treasury":     row.Treasury.String(),
		"total_supply": row.TotalSupply.String(),
	}).Info("Ledger initialized")
	return nil
}
