package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"infolookup/internal/util"
)

const previewBytes = 200

// Envelope is the raw transport result of one upstream call. It is validated immediately and
// never stored.
type Envelope struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

type FailureReason string

const (
	ReasonHTTPError             FailureReason = "http_error"
	ReasonEmptyBody             FailureReason = "empty_body"
	ReasonUnexpectedContentType FailureReason = "unexpected_content_type"
	ReasonMalformedBody         FailureReason = "malformed_body"
	ReasonRequestFailed         FailureReason = "request_failed"
	ReasonTimeout               FailureReason = "timeout"
	ReasonBodyTooLarge          FailureReason = "body_too_large"
)

// TransportError classifies a call that never produced trustworthy JSON.
type TransportError struct {
	Reason     FailureReason
	StatusCode int
	// Preview holds the start of an unexpected body; PageTitle is set when it was HTML.
	Preview   string
	PageTitle string
	Err       error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	switch e.Reason {
	case ReasonHTTPError:
		return fmt.Sprintf("HTTP Error %d", e.StatusCode)
	case ReasonEmptyBody:
		return "Empty response from website (blocked)"
	case ReasonUnexpectedContentType:
		if e.PageTitle != "" {
			return "Non-JSON response received (likely blocked): " + e.PageTitle
		}
		return "Non-JSON response received (likely blocked)"
	case ReasonMalformedBody:
		return "Invalid JSON response"
	case ReasonTimeout:
		return "Request timed out"
	case ReasonBodyTooLarge:
		return "Response too large"
	default:
		if e.Err != nil {
			return "Request failed: " + e.Err.Error()
		}
		return "Request failed"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from err, or "" when err is not a TransportError.
func ReasonOf(err error) FailureReason {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Validate decides whether env can be trusted as JSON. Checks run in a fixed order and stop
// at the first failure: status, empty body, content type, well-formedness. Numbers in the
// parsed value are json.Number.
func Validate(env Envelope, successStatus int) (any, error) {
	if env.StatusCode != successStatus {
		return nil, &TransportError{Reason: ReasonHTTPError, StatusCode: env.StatusCode}
	}

	body := bytes.TrimSpace(bytes.TrimPrefix(env.Body, utf8BOM))
	if len(body) == 0 {
		return nil, &TransportError{Reason: ReasonEmptyBody, StatusCode: env.StatusCode}
	}

	if !isJSONContentType(env.ContentType) {
		te := &TransportError{
			Reason:     ReasonUnexpectedContentType,
			StatusCode: env.StatusCode,
			Preview:    util.Truncate(string(body), previewBytes),
		}
		if isHTML(env.ContentType, body) {
			te.PageTitle = pageTitle(body)
		}
		return nil, te
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, &TransportError{Reason: ReasonMalformedBody, StatusCode: env.StatusCode, Preview: util.Truncate(string(body), previewBytes), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &TransportError{Reason: ReasonMalformedBody, StatusCode: env.StatusCode, Preview: util.Truncate(string(body), previewBytes), Err: errors.New("trailing data after JSON value")}
	}
	return parsed, nil
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "application/json" ||
		mediaType == "text/json" ||
		strings.HasSuffix(mediaType, "+json")
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return len(body) > 0 && body[0] == '<'
}

// pageTitle pulls a short human label out of a block/challenge page.
func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := util.NormalizeSpaces(doc.Find("title").First().Text())
	if title == "" {
		title = util.NormalizeSpaces(doc.Find("h1").First().Text())
	}
	return util.Truncate(title, 120)
}
