package connectors

import (
	"context"

	"infolookup/internal"
)

// MailConnector fetches unread lookup-request mail from one mailbox.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
