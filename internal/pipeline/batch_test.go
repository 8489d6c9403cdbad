package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"infolookup/internal"
	"infolookup/internal/logger"
	"infolookup/internal/metrics"
	"infolookup/internal/provider"
)

// fakePhone answers from a table keyed by normalized identifier.
type fakePhone struct {
	answers map[string]internal.Outcome
	delay   map[string]time.Duration
	calls   atomic.Int32
}

func (f *fakePhone) Lookup(ctx context.Context, id internal.Identifier) internal.Outcome {
	if !id.Valid() {
		return internal.NewInvalidFormat()
	}
	f.calls.Add(1)
	if d := f.delay[id.Normalized]; d > 0 {
		time.Sleep(d)
	}
	if out, ok := f.answers[id.Normalized]; ok {
		return out
	}
	return internal.NewNotFound("")
}

type fakeVehicle struct {
	queries []internal.LookupQuery
}

func (f *fakeVehicle) Lookup(_ context.Context, q internal.LookupQuery) internal.Outcome {
	f.queries = append(f.queries, q)
	return internal.NewFound(internal.VehicleRecord{RegistrationNumber: q.RegistrationNumber})
}

func rec(name string) internal.PhoneRecord {
	return internal.PhoneRecord{Name: name, Number: "03001234567"}
}

func newRunner(workers int) *BatchRunner {
	return NewBatchRunner(workers, metrics.New(), logger.Discard())
}

func TestBatchRunExpandsAndKeepsOrder(t *testing.T) {
	phone := &fakePhone{answers: map[string]internal.Outcome{
		"03001234567":   internal.NewFound(rec("A"), rec("B")),
		"3520212345678": internal.NewTransportFailure(&provider.TransportError{Reason: provider.ReasonEmptyBody}),
	}}
	jobs := PhoneJobs(phone, []string{"03001234567", "12345", "3520212345678", "3111111111"})

	table, err := newRunner(1).Run(context.Background(), internal.DomainPhone, jobs, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		input   string
		outcome internal.OutcomeKind
		status  string
	}{
		{"03001234567", internal.OutcomeFound, "Found"},
		{"03001234567", internal.OutcomeFound, "Found"},
		{"12345", internal.OutcomeInvalidFormat, "Invalid Format"},
		{"3520212345678", internal.OutcomeTransportFailure, "Empty response from website (blocked)"},
		{"3111111111", internal.OutcomeNotFound, "No record found"},
	}
	if len(table.Rows) != len(want) {
		t.Fatalf("rows=%d want %d", len(table.Rows), len(want))
	}
	for i, w := range want {
		row := table.Rows[i]
		if row.Input != w.input || row.Outcome != w.outcome || row.Status != w.status {
			t.Fatalf("row %d = %+v, want %+v", i, row, w)
		}
	}
	if table.Rows[4].Key != "03111111111" {
		t.Fatalf("key=%q", table.Rows[4].Key)
	}
	if table.Rows[2].Record != nil {
		t.Fatalf("placeholder row carries a record")
	}
	if phone.calls.Load() != 3 {
		t.Fatalf("invalid identifier reached the adapter: calls=%d", phone.calls.Load())
	}

	counts := table.Counts()
	if counts[internal.OutcomeFound] != 1 || counts[internal.OutcomeNotFound] != 1 {
		t.Fatalf("counts=%v", counts)
	}
}

func TestBatchRunEmpty(t *testing.T) {
	_, err := newRunner(1).Run(context.Background(), internal.DomainPhone, nil, nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("err=%v", err)
	}
}

func TestBatchRunProgressIsIncremental(t *testing.T) {
	phone := &fakePhone{answers: map[string]internal.Outcome{
		"03001234567": internal.NewFound(rec("A"), rec("B")),
	}}
	jobs := PhoneJobs(phone, []string{"03001234567", "03007654321"})

	var seen []Progress
	_, err := newRunner(1).Run(context.Background(), internal.DomainPhone, jobs, func(p Progress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Fatalf("progress calls=%d", len(seen))
	}
	if seen[0].Done != 1 || seen[0].Total != 2 || len(seen[0].Latest) != 2 || len(seen[0].Table.Rows) != 2 {
		t.Fatalf("first progress %+v", seen[0])
	}
	if seen[1].Done != 2 || len(seen[1].Table.Rows) != 3 {
		t.Fatalf("second progress %+v", seen[1])
	}
}

func TestBatchRunConcurrentKeepsInputOrder(t *testing.T) {
	phone := &fakePhone{
		answers: map[string]internal.Outcome{
			"03000000001": internal.NewFound(rec("first")),
			"03000000002": internal.NewFound(rec("second")),
			"03000000003": internal.NewFound(rec("third")),
		},
		delay: map[string]time.Duration{
			"03000000001": 60 * time.Millisecond,
			"03000000002": 30 * time.Millisecond,
		},
	}
	jobs := PhoneJobs(phone, []string{"03000000001", "03000000002", "03000000003"})

	var order []int
	table, err := newRunner(3).Run(context.Background(), internal.DomainPhone, jobs, func(p Progress) {
		order = append(order, p.Done)
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, name := range []string{"first", "second", "third"} {
		got := table.Rows[i].Record.(internal.PhoneRecord).Name
		if got != name || table.Rows[i].Position != i {
			t.Fatalf("row %d = %q (pos %d)", i, got, table.Rows[i].Position)
		}
	}
	for i, done := range order {
		if done != i+1 {
			t.Fatalf("progress out of order: %v", order)
		}
	}
}

func TestBatchRunRecoversPanics(t *testing.T) {
	jobs := []Job{
		{Input: "a", Key: "a", Lookup: func(context.Context) internal.Outcome { panic("boom") }},
		{Input: "b", Key: "b", Lookup: func(context.Context) internal.Outcome { return internal.NewNotFound("") }},
	}
	table, err := newRunner(1).Run(context.Background(), internal.DomainPhone, jobs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if table.Rows[0].Outcome != internal.OutcomeProviderError || table.Rows[0].Status != "internal error: boom" {
		t.Fatalf("row0=%+v", table.Rows[0])
	}
	if table.Rows[1].Outcome != internal.OutcomeNotFound {
		t.Fatalf("row1=%+v", table.Rows[1])
	}
}

func TestBatchRunRecordsMetrics(t *testing.T) {
	m := metrics.New()
	runner := NewBatchRunner(1, m, logger.Discard())
	phone := &fakePhone{answers: map[string]internal.Outcome{
		"03001234567": internal.NewTransportFailure(&provider.TransportError{Reason: provider.ReasonTimeout}),
	}}

	if _, err := runner.Run(context.Background(), internal.DomainPhone, PhoneJobs(phone, []string{"03001234567", "x"}), nil); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.Lookups.WithLabelValues("phone", "transport_failure")); got != 1 {
		t.Fatalf("transport_failure=%v", got)
	}
	if got := testutil.ToFloat64(m.Lookups.WithLabelValues("phone", "invalid_format")); got != 1 {
		t.Fatalf("invalid_format=%v", got)
	}
	if got := testutil.ToFloat64(m.UpstreamFailures.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("timeout=%v", got)
	}
}

func TestVehicleJobs(t *testing.T) {
	vehicle := &fakeVehicle{}
	if _, err := VehicleJobs(vehicle, []string{"abc 1"}, ""); !errors.Is(err, internal.ErrMissingCategory) {
		t.Fatalf("err=%v", err)
	}

	jobs, err := VehicleJobs(vehicle, []string{" abc  1 ", "khi-9"}, "4 wheeler")
	if err != nil {
		t.Fatal(err)
	}
	table, err := newRunner(1).Run(context.Background(), internal.DomainVehicle, jobs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(vehicle.queries) != 2 || vehicle.queries[0].RegistrationNumber != "ABC 1" || vehicle.queries[0].Category != internal.Category4W {
		t.Fatalf("queries=%+v", vehicle.queries)
	}
	if table.Rows[0].Input != "abc  1" || table.Rows[0].Key != "ABC 1" {
		t.Fatalf("row0=%+v", table.Rows[0])
	}
}

func TestBatchRunReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	phone := &fakePhone{}
	jobs := PhoneJobs(phone, []string{"03001234567", "03007654321"})
	table, err := newRunner(1).Run(ctx, internal.DomainPhone, jobs, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("every input should still have a row, got %d", len(table.Rows))
	}
}
