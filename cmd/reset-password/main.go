// Command reset-password sets a user's password from the server console
// and ends the user's open session.
package main

import (
	"os"

	"go-fundo-ops/internal/config"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"
	"go-fundo-ops/pkg/database"
	applogger "go-fundo-ops/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		envFile  string
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:          "reset-password",
		Short:        "Reset a user's password",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := applogger.Must(applogger.NewDevelopment())
			defer logger.Sync()

			// 1. Load config
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if email == "" {
				email = cfg.Auth.AdminEmail
			}

			// 2. Setup Database
			db, err := database.ConnectDB(cfg.DatabaseSettings())
			if err != nil {
				return err
			}

			// 3. Update through the auth service so the hash and session rules match login
			authService := service.NewAuthService(repository.NewUserRepo(db), nil, logger)
			if err := authService.SetPassword(email, password); err != nil {
				logger.Error("password not reset", zap.String("email", email), zap.Error(err))
				return err
			}

			logger.Info("password reset", zap.String("email", email))
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "env file to load")
	cmd.Flags().StringVar(&email, "email", "", "user email (default ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "new password, at least 6 characters")
	_ = cmd.MarkFlagRequired("password")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
