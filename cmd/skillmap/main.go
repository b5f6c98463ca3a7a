package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillmap/api/services"
	"skillmap/db"
	"skillmap/pkg/auth"
	"skillmap/pkg/config"
	"skillmap/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "skillmap",
	Short: "SAP consultant catalog",
	Long: `SkillMap keeps a catalog of SAP consultants from the owner organization and its
partners, and lets clients search it without seeing personal data.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./skillmap.yaml)")
	rootCmd.AddCommand(serveCmd, seedCmd, searchCmd, hashPasswordCmd)
}

type app struct {
	cfg *config.Config
	log *zap.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) openDB(ctx context.Context) (*db.Service, error) {
	dbCfg := db.DefaultConfig()
	dbCfg.DBPath = a.cfg.DB.Path
	dbCfg.MaxOpenConns = a.cfg.DB.MaxOpenConns
	dbCfg.AutoInitialize = a.cfg.DB.AutoInitialize
	return db.New(ctx, dbCfg, a.log.Named("db"))
}

func (a *app) tokens() *auth.TokenManager {
	return auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL, a.cfg.Auth.Issuer)
}

// offlineServices builds services without an event publisher for one-shot commands.
func (a *app) offlineServices(store *db.Service) *services.Services {
	return services.New(store.GetDB(), a.tokens(), nil, nil, a.log)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
