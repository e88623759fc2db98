package cli

import (
	"github.com/spf13/cobra"

	"quiz-night-service/internal/app"
	"quiz-night-service/internal/config"
	"quiz-night-service/internal/logger"
)

// NewResetCmd clears teams, answers, scores and the round state in the configured store.
func NewResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the stored quiz session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level)
			defer func() { _ = log.Sync() }()

			store, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			service := app.NewQuizService(store, app.Options{MaxRound: cfg.Quiz.MaxRound, Logger: log})
			return service.ResetSession(cmd.Context())
		},
	}
}
