package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"infolookup/internal"
	"infolookup/internal/storage"
)

const statusFetched = "fetched"

// MailStore keeps raw request mails on disk under <dir>/<hash[:2]>/<hash>.eml and
// records them in the emails table. A re-fetched message updates its row in place.
type MailStore struct {
	db  *storage.DB
	dir string
}

func NewMailStore(db *storage.DB, dir string) *MailStore {
	return &MailStore{db: db, dir: dir}
}

func (s *MailStore) Store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	path, err := s.writeRaw(hash, msg.Raw)
	if err != nil {
		return internal.EmailRow{}, fmt.Errorf("store raw mail %s: %w", msg.MessageID, err)
	}
	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, path, statusFetched)
}

// writeRaw is a no-op when the content already exists; new files appear atomically.
func (s *MailStore) writeRaw(hash string, raw []byte) (string, error) {
	dir := filepath.Join(s.dir, hash[:2])
	path := filepath.Join(dir, hash+".eml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, hash+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return path, os.Rename(tmp.Name(), path)
}
