package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"infolookup/internal"
	"infolookup/internal/config"
	"infolookup/internal/storage"
)

const (
	EmailStatusFetched   = "fetched"
	EmailStatusProcessed = "processed"
	EmailStatusSkipped   = "skipped"
	EmailStatusExported  = "exported"
	EmailStatusFailed    = "failed"
)

// ErrUnreadableMail marks an e-mail whose stored raw message cannot be read or parsed.
var ErrUnreadableMail = errors.New("unreadable mail")

// ProcessingService turns stored lookup-request e-mails into recorded phone batch runs.
type ProcessingService struct {
	db     *storage.DB
	cfg    config.Config
	phone  PhoneLookuper
	runner *BatchRunner
	log    *slog.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, phone PhoneLookuper, runner *BatchRunner, log *slog.Logger) *ProcessingService {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessingService{db: db, cfg: cfg, phone: phone, runner: runner, log: log}
}

type ProcessResult struct {
	EmailID int
	RunID   string
	Inputs  int
	Rows    int
	Skipped bool
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending handles up to limit fetched e-mails, optionally of one provider only, and
// returns how many e-mails and lookup inputs were processed. An unreadable e-mail is marked
// failed and the rest continue; storage errors and cancellation stop the loop.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(EmailStatusFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedInputs := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if errors.Is(err, ErrUnreadableMail) {
			s.log.Warn("email failed", "email_id", email.ID, "message_id", email.MessageID, "err", err)
			if err := s.db.UpdateEmailStatus(email.ID, EmailStatusFailed); err != nil {
				return processedEmails, processedInputs, err
			}
			continue
		}
		if err != nil {
			return processedEmails, processedInputs, err
		}
		processedEmails++
		processedInputs += res.Inputs
	}
	return processedEmails, processedInputs, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%w: %w", ErrUnreadableMail, err)
	}

	items, content, err := ExtractInputsFromEmailRaw(raw)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%w: %w", ErrUnreadableMail, err)
	}

	detect := DetectLookupRequest(firstNonEmpty(content.Subject, email.Subject), content.Text, content.HTML, content.Attachments, len(items), s.cfg.MailDetectThreshold)
	log := s.log.With("email_id", email.ID, "message_id", email.MessageID)
	if !detect.IsLookup {
		log.Info("email skipped", "score", detect.Score, "reason", detect.Reason, "inputs", len(items))
		if err := s.db.UpdateEmailStatus(email.ID, EmailStatusSkipped); err != nil {
			return ProcessResult{}, err
		}
		return ProcessResult{EmailID: email.ID, Skipped: true}, nil
	}

	started := time.Now().UTC()
	table, err := s.runner.Run(ctx, internal.DomainPhone, PhoneJobs(s.phone, Values(items)), nil)
	if err != nil {
		return ProcessResult{}, err
	}

	runID, err := s.db.SaveRun(internal.RunRow{
		Domain:    internal.DomainPhone,
		Source:    string(internal.SourceEML),
		StartedAt: started.Format(time.RFC3339),
		Inputs:    len(items),
	}, table, &email.ID)
	if err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.AttachEmailRun(email.ID, runID); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateEmailStatus(email.ID, EmailStatusProcessed); err != nil {
		return ProcessResult{}, err
	}

	log.Info("email processed", "run_id", runID, "inputs", len(items), "rows", len(table.Rows))
	return ProcessResult{EmailID: email.ID, RunID: runID, Inputs: len(items), Rows: len(table.Rows)}, nil
}

// ExportEmail writes the run of a processed e-mail to dir/<email id>_<message id>.xlsx.
func (s *ProcessingService) ExportEmail(email internal.EmailRow, dir string) (string, error) {
	if email.RunID == nil {
		return "", errors.New("email has no recorded run")
	}
	table, err := s.db.GetRunTable(*email.RunID)
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID))
	outputPath := filepath.Join(dir, filename)
	if err := ExportTableXLSX(table, outputPath); err != nil {
		return "", err
	}
	return outputPath, s.db.UpdateEmailStatus(email.ID, EmailStatusExported)
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
