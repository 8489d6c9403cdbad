package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"infolookup/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	if _, err := NewConnector(config.Config{IMAPHost: "imap.example.com", IMAPUser: "desk"}); err == nil {
		t.Fatal("expected missing IMAP_PASSWORD error")
	}
	c, err := NewConnector(config.Config{IMAPHost: "imap.example.com", IMAPUser: "desk", IMAPPassword: "x", IMAPPort: 993, IMAPSecure: true})
	if err != nil {
		t.Fatal(err)
	}
	if c.port != 993 || !c.secure {
		t.Fatalf("connector=%+v", c)
	}
}

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2026, 10, 5, 9, 30, 0, 0, time.FixedZone("PKT", 5*3600)),
		Envelope: &imap.Envelope{
			Subject: "SIM info",
			From:    []*imap.Address{{PersonalName: "Ops Desk", MailboxName: "ops", HostName: "example.com"}, {MailboxName: "b", HostName: "example.com"}},
		},
	}
	got := toFetched(msg, []byte("raw"))
	if got.MessageID != "imap-42" {
		t.Fatalf("message id=%q", got.MessageID)
	}
	if got.ReceivedAt != "2026-10-05T04:30:00Z" {
		t.Fatalf("received=%q", got.ReceivedAt)
	}
	if got.From != `"Ops Desk" <ops@example.com>, b@example.com` {
		t.Fatalf("from=%q", got.From)
	}
}
