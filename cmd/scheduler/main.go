package main

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"subclipper/internal/config"
	"subclipper/internal/logging"
	"subclipper/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{},
	)

	task, err := tasks.NewReconcileStorageTask()
	if err != nil {
		log.Fatal().Err(err).Msg("could not create task")
	}

	if _, err := scheduler.Register("@every 1h", task, asynq.Unique(time.Hour)); err != nil {
		log.Fatal().Err(err).Msg("could not register task")
	}

	log.Info().Str("commit", CommitSHA).Msg("scheduler starting")
	if err := scheduler.Run(); err != nil {
		log.Fatal().Err(err).Msg("could not run scheduler")
	}
}
