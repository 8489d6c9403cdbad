package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"infolookup/internal/config"
	"infolookup/internal/connectors"
	gmailconnector "infolookup/internal/connectors/gmail"
	imapconnector "infolookup/internal/connectors/imap"
	"infolookup/internal/pipeline"
	"infolookup/internal/storage"
)

const lastCycleKey = "listener.lastCycleAt"

// ConnectorFactory builds the mail connector for a provider name.
type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

// Service polls the configured mailbox, runs lookups for request mails and exports results.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	connect   ConnectorFactory
	log       *slog.Logger
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{db: db, cfg: cfg, processor: processor, log: log.With("component", "listener")}
	s.connect = s.makeConnector
	return s
}

// WithConnectorFactory replaces how connectors are built.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.connect = f
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Provider  string
	Fetched   int
	Stored    int
	Processed int
	Exported  int
}

// RunCycle fetches, processes and (optionally) exports once.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	res := CycleResult{Provider: provider}

	mailConnector, err := s.connect(ctx, provider)
	if err != nil {
		return res, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetchResult.Fetched, fetchResult.Stored

	res.Processed, _, err = s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		res.Exported, err = s.exportProcessed(provider)
		if err != nil {
			return res, err
		}
	}

	_ = s.db.SetMetadata(lastCycleKey, time.Now().UTC().Format(time.RFC3339))
	s.log.Info("listener cycle done",
		"provider", provider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"processed", res.Processed,
		"exported", res.Exported,
	)
	return res, nil
}

func (s *Service) exportProcessed(provider string) (int, error) {
	emails, err := s.db.ListEmailsByStatus(pipeline.EmailStatusProcessed, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	dir := filepath.Join(s.cfg.OutputDir, "listener")
	for _, email := range emails {
		if email.Provider != provider || email.RunID == nil {
			continue
		}
		path, err := s.processor.ExportEmail(email, dir)
		if err != nil {
			return exported, err
		}
		exported++
		s.log.Info("listener export written", "email_id", email.ID, "path", path)
	}
	return exported, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	return NewConnector(ctx, s.cfg, provider)
}

// NewConnector builds the mail connector named by provider ("gmail" or "imap").
func NewConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
