package connectors

import (
	"context"
	"log/slog"

	"infolookup/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStore
	log       *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *slog.Logger) *FetchService {
	if log == nil {
		log = slog.Default()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStore(db, rawMailDir),
		log:       log,
	}
}

// FetchAndStore pulls up to max messages from label and stores each one. It stops at the
// first storage error; messages stored before it stay stored.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored++
		s.log.Debug("mail stored", "provider", msg.Provider, "message_id", msg.MessageID, "email_id", row.ID)
	}

	return res, nil
}
