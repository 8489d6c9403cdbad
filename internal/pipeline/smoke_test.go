package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"infolookup/internal"
	"infolookup/internal/config"
	"infolookup/internal/logger"
	"infolookup/internal/storage"
)

func TestSmokeEmailToXLSX(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rawBlob, err := os.ReadFile(filepath.Join("testdata", "lookup_request.eml"))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, rawBlob, 0o644); err != nil {
		t.Fatal(err)
	}

	email, err := db.UpsertEmail("imap", "<req-1@example.com>", "SIM info request", "ops@example.com", "2026-10-05T04:30:00Z", "hash", rawPath, EmailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}

	phone := &fakePhone{answers: map[string]internal.Outcome{
		"03001234567": internal.NewFound(rec("A"), rec("B")),
	}}
	cfg := config.Config{MailDetectThreshold: 0.5}
	proc := NewProcessingService(db, cfg, phone, newRunner(1), logger.Discard())

	processed, inputs, err := proc.ProcessPending(context.Background(), 10, "imap")
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 || inputs != 3 {
		t.Fatalf("processed=%d inputs=%d", processed, inputs)
	}

	stored, err := db.GetEmailByID(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != EmailStatusProcessed || stored.RunID == nil {
		t.Fatalf("email=%+v", stored)
	}

	table, err := db.GetRunTable(*stored.RunID)
	if err != nil {
		t.Fatal(err)
	}
	// two records for the first number, one placeholder each for the other two
	if len(table.Rows) != 4 {
		t.Fatalf("rows=%d", len(table.Rows))
	}

	out, err := proc.ExportEmail(*stored, filepath.Join(tmp, "out", "listener"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != "1__req-1_example.com_.xlsx" {
		t.Fatalf("out=%s", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestProcessEmailSkipsNonRequests(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rawPath := filepath.Join(tmp, "newsletter.eml")
	raw := "From: news@example.com\r\nSubject: Weekly digest\r\nContent-Type: text/plain\r\n\r\nNothing to see here.\r\n"
	if err := os.WriteFile(rawPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	email, err := db.UpsertEmail("imap", "<n1@example.com>", "Weekly digest", "news@example.com", "", "h", rawPath, EmailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}

	phone := &fakePhone{}
	proc := NewProcessingService(db, config.Config{}, phone, newRunner(1), logger.Discard())
	res, err := proc.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || phone.calls.Load() != 0 {
		t.Fatalf("res=%+v calls=%d", res, phone.calls.Load())
	}
	stored, _ := db.GetEmailByID(email.ID)
	if stored.Status != EmailStatusSkipped {
		t.Fatalf("status=%s", stored.Status)
	}
}

func TestProcessPendingMarksUnreadableMailFailed(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	broken, err := db.UpsertEmail("imap", "<gone@example.com>", "SIM info request", "ops@example.com", "2026-10-01T00:00:00Z", "h1", filepath.Join(tmp, "missing.eml"), EmailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}

	rawBlob, err := os.ReadFile(filepath.Join("testdata", "lookup_request.eml"))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, rawBlob, 0o644); err != nil {
		t.Fatal(err)
	}
	good, err := db.UpsertEmail("imap", "<req-2@example.com>", "SIM info request", "ops@example.com", "2026-10-02T00:00:00Z", "h2", rawPath, EmailStatusFetched)
	if err != nil {
		t.Fatal(err)
	}

	proc := NewProcessingService(db, config.Config{MailDetectThreshold: 0.5}, &fakePhone{}, newRunner(1), logger.Discard())
	processed, inputs, err := proc.ProcessPending(context.Background(), 10, "imap")
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 || inputs != 3 {
		t.Fatalf("processed=%d inputs=%d", processed, inputs)
	}

	stored, _ := db.GetEmailByID(broken.ID)
	if stored.Status != EmailStatusFailed {
		t.Fatalf("broken status=%s", stored.Status)
	}
	stored, _ = db.GetEmailByID(good.ID)
	if stored.Status != EmailStatusProcessed {
		t.Fatalf("good status=%s", stored.Status)
	}

	// the failed mail is not picked up again
	processed, _, err = proc.ProcessPending(context.Background(), 10, "imap")
	if err != nil || processed != 0 {
		t.Fatalf("second pass processed=%d err=%v", processed, err)
	}

	if _, err := proc.ProcessEmail(context.Background(), broken); !errors.Is(err, ErrUnreadableMail) {
		t.Fatalf("err=%v", err)
	}
}
