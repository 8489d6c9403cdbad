package provider

import (
	"context"
	"log/slog"
	"net/http"

	"infolookup/internal"
	"infolookup/internal/config"
)

const phoneNotFound = "No record found for this number."

// PhoneAdapter looks up SIM owner records for phone numbers and national IDs.
type PhoneAdapter struct {
	client   *Client
	endpoint string
	action   string
	referer  string
	mode     string
	log      *slog.Logger
}

func NewPhoneAdapter(client *Client, cfg config.Config, log *slog.Logger) *PhoneAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &PhoneAdapter{
		client:   client,
		endpoint: cfg.PhoneAPIURL,
		action:   cfg.PhoneAPIAction,
		referer:  cfg.PhoneAPIReferer,
		mode:     cfg.PhoneRecordMode,
		log:      log.With("provider", "phone"),
	}
}

// Lookup never returns an error: every failure is folded into the outcome. Invalid
// identifiers are rejected without touching the network.
func (a *PhoneAdapter) Lookup(ctx context.Context, id internal.Identifier) internal.Outcome {
	if !id.Valid() {
		return internal.NewInvalidFormat()
	}

	headers := map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"X-Requested-With": "XMLHttpRequest",
	}
	if a.referer != "" {
		headers["Referer"] = a.referer
	}
	env, err := a.client.Get(ctx, a.endpoint, map[string]string{
		"action": a.action,
		"term":   id.Normalized,
	}, headers)
	if err != nil {
		a.log.Warn("phone lookup transport failure", "input", id.Normalized, "reason", ReasonOf(err), "err", err)
		return internal.NewTransportFailure(err)
	}

	parsed, err := Validate(env, http.StatusOK)
	if err != nil {
		var preview string
		if te, ok := err.(*TransportError); ok {
			preview = te.Preview
		}
		a.log.Warn("phone lookup rejected response", "input", id.Normalized, "status", env.StatusCode, "reason", ReasonOf(err), "preview", preview)
		return internal.NewTransportFailure(err)
	}
	return decodePhone(parsed, a.mode)
}

// decodePhone maps a validated payload to an outcome. Accepted shapes:
//
//	{"success": true, "data": [ {...}, ... ]}
//	{"success": true, "data": {...}}
//	{"success": false}
//	[ {...}, ... ]
func decodePhone(parsed any, mode string) internal.Outcome {
	switch v := parsed.(type) {
	case []any:
		return phoneRecords(v, mode)
	case map[string]any:
		if msg := errorMessage(v); msg != "" {
			return internal.NewProviderError(msg)
		}
		success, ok := truthy(v["success"])
		if !ok {
			return internal.NewProviderError(unexpectedFormat)
		}
		if !success {
			return internal.NewNotFound(phoneNotFound)
		}
		switch data := v["data"].(type) {
		case nil:
			return internal.NewNotFound(phoneNotFound)
		case []any:
			return phoneRecords(data, mode)
		case map[string]any:
			return internal.NewFound(phoneRecord(data))
		default:
			return internal.NewProviderError(unexpectedFormat)
		}
	default:
		return internal.NewProviderError(unexpectedFormat)
	}
}

func phoneRecords(entries []any, mode string) internal.Outcome {
	if len(entries) == 0 {
		return internal.NewNotFound(phoneNotFound)
	}
	records := make([]internal.CanonicalRecord, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, phoneRecord(m))
		if mode == config.RecordModeFirst {
			break
		}
	}
	if len(records) == 0 {
		return internal.NewProviderError(unexpectedFormat)
	}
	return internal.NewFound(records...)
}

func phoneRecord(m map[string]any) internal.PhoneRecord {
	return internal.PhoneRecord{
		Name:    stringField(m, "name"),
		Number:  stringField(m, "number"),
		CNIC:    stringField(m, "cnic"),
		Address: stringField(m, "address"),
	}
}
