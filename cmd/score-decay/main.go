// Command score-decay runs a single decay sweep and exits. Useful for manual
// runs and for cron-based deployments without the asynq scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadflow_backend/internal/leads/decay"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
)

func main() {
	tenantFlag := flag.String("tenant", "", "sweep a single tenant id instead of all tenants")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting score decay sweep", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	settingsSvc := settings.New(settings.NewRepository(pool), initSettingsCache(cfg, log), log)
	sweeper := decay.NewSweeper(repository.New(pool), settingsSvc, log)

	var result decay.Result
	if *tenantFlag != "" {
		tenantID, err := uuid.Parse(*tenantFlag)
		if err != nil {
			log.Error("invalid tenant id", "tenant", *tenantFlag)
			os.Exit(2)
		}
		result, err = sweeper.DegradeInactiveScores(ctx, tenantID)
		if err != nil {
			log.Error("decay sweep failed", "tenant_id", tenantID, "error", err)
			os.Exit(1)
		}
	} else {
		result, err = sweeper.Run(ctx)
		if err != nil {
			log.Error("decay sweep failed", "error", err)
			os.Exit(1)
		}
	}

	log.Info("score decay sweep completed",
		"processed", result.Processed,
		"degraded", result.Degraded,
		"stage_changes", result.StageChanges,
		"failed", result.Failed)
}

func initSettingsCache(cfg *config.Config, log *logger.Logger) *settings.Cache {
	if cfg.GetRedisURL() == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url; settings cache disabled", "error", err)
		return nil
	}

	return settings.NewCache(redis.NewClient(opt), cfg.GetSettingsCacheTTL())
}
