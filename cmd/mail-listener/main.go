// Command mail-listener polls the configured mailbox, runs phone lookups for request mails
// and writes their result workbooks until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"infolookup/internal/app"
	"infolookup/internal/config"
	"infolookup/internal/listener"
)

func main() {
	cfg, err := config.Load()
	must(err)

	a, err := app.New(cfg)
	must(err)
	defer a.Close()

	svc := listener.NewService(a.DB, cfg, a.Processor(), a.Log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.Log.Info("mail listener started",
		"provider", cfg.MailListenerProvider,
		"label", cfg.MailListenerLabel,
		"interval_sec", cfg.MailListenerIntervalSec,
	)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
