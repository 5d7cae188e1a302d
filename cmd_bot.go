package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/khutwa/internal/bot"
	"github.com/example/khutwa/internal/lesson"
	"github.com/spf13/cobra"
)

// botCmd runs the Telegram bot
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Run the Telegram bot until interrupted.

The token is read from TELEGRAM_BOT_TOKEN or bot.token in the config file.`,
	RunE: runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := lesson.OptionsFromConfig(a.cfg.Lesson)
	opts.Logger = a.log

	b, err := bot.New(a.cfg, bot.Deps{
		Catalog: a.catalog,
		Store:   a.store,
		Lesson:  opts,
		Logger:  a.log,
	})
	if err != nil {
		return err
	}

	a.log.Infow("bot started", "units", a.catalog.Len(), "storage", a.cfg.Storage.Driver)
	if err := b.Start(ctx); err != nil {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
