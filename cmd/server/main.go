// cmd/server/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/songgate/internal/config"
	"github.com/javajoker/songgate/internal/database"
	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/store"
	"github.com/javajoker/songgate/internal/store/gormstore"
	"github.com/javajoker/songgate/internal/store/memory"
)

var rootCmd = &cobra.Command{
	Use:   "songgate",
	Short: "Payment-gated song distribution service",
	Long: `songgate publishes songs, takes escrowed payments from buyers and
releases the encrypted content key once the publisher confirms the sale.`,
	SilenceUsage: true,
}

var (
	listenPort  string
	skipMigrate bool
	debug       bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	serveCmd.Flags().StringVarP(&listenPort, "port", "p", "", "override SERVER_PORT")
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run migrations on start")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(genesisCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// bootstrap loads configuration, translations and the logger shared by
// every command.
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)

	if err := i18n.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize i18n: %w", err)
	}
	return cfg, logger, nil
}

// openStore returns the configured store and a close function. The memory
// driver keeps everything in process and loses it on exit.
func openStore(cfg *config.Config, logger *logrus.Logger, migrate bool) (store.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using the in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}

	db, err := database.Initialize(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { database.Close(db, logger) }

	if migrate {
		if err := database.RunMigrations(db, logger); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return gormstore.New(db), closeFn, nil
}

func openDatabase(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	if cfg.Database.Driver == "memory" {
		return nil, fmt.Errorf("the memory driver has no schema to migrate")
	}
	return database.Initialize(cfg.Database, logger)
}
