package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaelpento.lv/arbbot/cmd/bot"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the arbitrage bot",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		if err := config.LoadEnv(); err != nil {
			log.Fatal("Failed to load environment", zap.Error(err))
		}

		secrets, err := config.LoadSecrets()
		if err != nil {
			log.Fatal("Failed to load signing keys", zap.Error(err))
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}
		cfg.Logger = log

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			log.Info("Shutting down gracefully...")
			cancel()
		}()

		b, err := bot.New(ctx, cfg, secrets, log)
		if err != nil {
			log.Fatal("Failed to create bot", zap.Error(err))
		}
		defer b.Close()

		if err := b.Run(ctx); err != nil && err != context.Canceled {
			log.Fatal("Bot stopped", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
