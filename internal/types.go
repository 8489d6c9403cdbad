package internal

import (
	"errors"
	"strings"
)

type Domain string

const (
	DomainPhone   Domain = "phone"
	DomainVehicle Domain = "vehicle"
)

func ParseDomain(value string) (Domain, error) {
	switch Domain(strings.ToLower(strings.TrimSpace(value))) {
	case DomainPhone, "sim":
		return DomainPhone, nil
	case DomainVehicle:
		return DomainVehicle, nil
	default:
		return "", errors.New("domain must be phone or vehicle")
	}
}

var (
	phoneColumns   = []string{"name", "number", "cnic", "address"}
	vehicleColumns = []string{
		"registrationNumber", "ownerName", "ownerCNIC", "model", "modelYear", "color",
		"engineNumber", "chassisNumber", "registrationDate", "cplcStatus", "district", "branch",
	}
)

// Columns returns the canonical field names of the domain in export order.
func (d Domain) Columns() []string {
	switch d {
	case DomainPhone:
		return append([]string(nil), phoneColumns...)
	case DomainVehicle:
		return append([]string(nil), vehicleColumns...)
	default:
		return nil
	}
}

type InputSource string

const (
	SourceText InputSource = "text"
	SourceFile InputSource = "file"
	SourceXLSX InputSource = "xlsx"
	SourceCSV  InputSource = "csv"
	SourceHTML InputSource = "html"
	SourcePDF  InputSource = "pdf"
	SourceEML  InputSource = "eml"
)

// RawInput is one user-supplied value as extracted from its source, before normalization.
type RawInput struct {
	Position int
	Source   InputSource
	Value    string
	Meta     map[string]any
}

type IdentifierKind string

const (
	KindPhone11      IdentifierKind = "phone11"
	KindNationalID13 IdentifierKind = "nationalId13"
	KindInvalid      IdentifierKind = "invalid"
)

type Identifier struct {
	Raw        string
	Normalized string
	Kind       IdentifierKind
}

func (id Identifier) Valid() bool {
	return id.Kind == KindPhone11 || id.Kind == KindNationalID13
}

type Category string

const (
	Category2W Category = "2W"
	Category4W Category = "4W"
)

var (
	ErrMissingCategory     = errors.New("vehicle category is required")
	ErrUnknownCategory     = errors.New("vehicle category must be \"2 wheeler\" or \"4 wheeler\"")
	ErrMissingRegistration = errors.New("registration number is required")
)

// ParseCategory maps a user-facing category label to the upstream category code.
func ParseCategory(label string) (Category, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(label), " "))
	switch norm {
	case "":
		return "", ErrMissingCategory
	case "2 wheeler", "2-wheeler", "2w":
		return Category2W, nil
	case "4 wheeler", "4-wheeler", "4w":
		return Category4W, nil
	default:
		return "", ErrUnknownCategory
	}
}

type LookupQuery struct {
	Raw                string
	RegistrationNumber string
	Category           Category
}

// CanonicalRecord is one provider-independent result row. Values are aligned with
// Domain().Columns() and never shorter than it.
type CanonicalRecord interface {
	Domain() Domain
	Values() []string
}

type PhoneRecord struct {
	Name    string `json:"name"`
	Number  string `json:"number"`
	CNIC    string `json:"cnic"`
	Address string `json:"address"`
}

func (r PhoneRecord) Domain() Domain { return DomainPhone }

func (r PhoneRecord) Values() []string {
	return []string{r.Name, r.Number, r.CNIC, r.Address}
}

type VehicleRecord struct {
	RegistrationNumber string `json:"registrationNumber"`
	OwnerName          string `json:"ownerName"`
	OwnerCNIC          string `json:"ownerCNIC"`
	Model              string `json:"model"`
	ModelYear          string `json:"modelYear"`
	Color              string `json:"color"`
	EngineNumber       string `json:"engineNumber"`
	ChassisNumber      string `json:"chassisNumber"`
	RegistrationDate   string `json:"registrationDate"`
	CPLCStatus         string `json:"cplcStatus"`
	District           string `json:"district"`
	Branch             string `json:"branch"`
}

func (r VehicleRecord) Domain() Domain { return DomainVehicle }

func (r VehicleRecord) Values() []string {
	return []string{
		r.RegistrationNumber, r.OwnerName, r.OwnerCNIC, r.Model, r.ModelYear, r.Color,
		r.EngineNumber, r.ChassisNumber, r.RegistrationDate, r.CPLCStatus, r.District, r.Branch,
	}
}

type OutcomeKind string

const (
	OutcomeFound            OutcomeKind = "found"
	OutcomeNotFound         OutcomeKind = "not_found"
	OutcomeInvalidFormat    OutcomeKind = "invalid_format"
	OutcomeTransportFailure OutcomeKind = "transport_failure"
	OutcomeProviderError    OutcomeKind = "provider_error"
)

// Outcome is the terminal result of one lookup. Records is set only for OutcomeFound;
// Reason carries the failure text for every other kind. Err keeps the classified
// transport error behind a TransportFailure.
type Outcome struct {
	Kind    OutcomeKind
	Records []CanonicalRecord
	Reason  string
	Err     error
}

const (
	StatusFound         = "Found"
	StatusNotFound      = "No record found"
	StatusInvalidFormat = "Invalid Format"
)

func NewFound(records ...CanonicalRecord) Outcome {
	return Outcome{Kind: OutcomeFound, Records: records}
}

func NewNotFound(reason string) Outcome {
	if strings.TrimSpace(reason) == "" {
		reason = StatusNotFound
	}
	return Outcome{Kind: OutcomeNotFound, Reason: reason}
}

func NewInvalidFormat() Outcome {
	return Outcome{Kind: OutcomeInvalidFormat, Reason: StatusInvalidFormat}
}

func NewTransportFailure(err error) Outcome {
	reason := "Request failed"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Kind: OutcomeTransportFailure, Reason: reason, Err: err}
}

func NewProviderError(message string) Outcome {
	return Outcome{Kind: OutcomeProviderError, Reason: message}
}

// Status is the human-readable text shown in the Status column.
func (o Outcome) Status() string {
	if o.Kind == OutcomeFound {
		return StatusFound
	}
	return o.Reason
}

// ResultRow is one flattened row of a ResultTable. Record is nil for placeholder rows.
type ResultRow struct {
	Position int
	Input    string
	Key      string
	Outcome  OutcomeKind
	Status   string
	Record   CanonicalRecord
}

// ResultTable is ordered by input position; rows expanded from one input are contiguous.
type ResultTable struct {
	Domain Domain
	Rows   []ResultRow
}

const (
	ColumnInput  = "Input"
	ColumnStatus = "Status"
)

func (t ResultTable) Columns() []string {
	cols := []string{ColumnInput}
	cols = append(cols, t.Domain.Columns()...)
	return append(cols, ColumnStatus)
}

// Cells returns the row's fields for the given domain, with empty strings for a
// placeholder row.
func (r ResultRow) Cells(domain Domain) []string {
	n := len(domain.Columns())
	out := make([]string, n)
	if r.Record != nil {
		copy(out, r.Record.Values())
	}
	return out
}

// Flat returns every column of the row keyed by column name; absent values are "".
func (t ResultTable) Flat() []map[string]string {
	cols := t.Domain.Columns()
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(cols)+2)
		m[ColumnInput] = row.Input
		for i, v := range row.Cells(t.Domain) {
			m[cols[i]] = v
		}
		m[ColumnStatus] = row.Status
		out = append(out, m)
	}
	return out
}

// Counts tallies distinct inputs per outcome kind.
func (t ResultTable) Counts() map[OutcomeKind]int {
	counts := map[OutcomeKind]int{}
	last := -1
	for _, row := range t.Rows {
		if row.Position == last {
			continue
		}
		last = row.Position
		counts[row.Outcome]++
	}
	return counts
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
	RunID      *string
}

type RunRow struct {
	ID         string
	Domain     Domain
	Source     string
	StartedAt  string
	FinishedAt string
	Inputs     int
	Rows       int
	Counts     map[OutcomeKind]int
}
