package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"infolookup/internal"
	"infolookup/internal/metrics"
	"infolookup/internal/provider"
)

var ErrEmptyBatch = errors.New("enter at least one value to look up")

// Job is one item of a batch. Input is what the user typed (trimmed) and Key is the
// normalized value the merge joins on.
type Job struct {
	Input  string
	Key    string
	Lookup func(ctx context.Context) internal.Outcome
}

// Progress is reported after every item is appended to the table, in input order.
// Table shares storage with the runner and must not be modified by the callback.
type Progress struct {
	Done   int
	Total  int
	Latest []internal.ResultRow
	Table  internal.ResultTable
}

type PhoneLookuper interface {
	Lookup(ctx context.Context, id internal.Identifier) internal.Outcome
}

type VehicleLookuper interface {
	Lookup(ctx context.Context, q internal.LookupQuery) internal.Outcome
}

type BatchRunner struct {
	workers int
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewBatchRunner(workers int, m *metrics.Metrics, log *slog.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &BatchRunner{workers: workers, metrics: m, log: log}
}

// Run looks up every job and returns one table in input order. Failures are kept per item;
// the only error conditions are an empty batch and a cancelled context, and in the latter
// case the table built so far is still returned.
func (b *BatchRunner) Run(ctx context.Context, domain internal.Domain, jobs []Job, onProgress func(Progress)) (internal.ResultTable, error) {
	table := internal.ResultTable{Domain: domain}
	if len(jobs) == 0 {
		return table, ErrEmptyBatch
	}
	table.Rows = make([]internal.ResultRow, 0, len(jobs))

	started := time.Now()
	emit := func(pos int, out internal.Outcome) {
		rows := expandOutcome(pos, jobs[pos], out)
		table.Rows = append(table.Rows, rows...)
		if onProgress != nil {
			onProgress(Progress{Done: pos + 1, Total: len(jobs), Latest: rows, Table: table})
		}
	}

	if b.workers <= 1 {
		for i, job := range jobs {
			emit(i, b.runOne(ctx, domain, i, job))
		}
	} else {
		b.runConcurrent(ctx, domain, jobs, emit)
	}

	b.log.Info("batch finished",
		"domain", domain,
		"inputs", len(jobs),
		"rows", len(table.Rows),
		"workers", b.workers,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return table, ctx.Err()
}

// runConcurrent keeps up to b.workers lookups in flight and hands finished outcomes to emit
// strictly by position, buffering any that complete early.
func (b *BatchRunner) runConcurrent(ctx context.Context, domain internal.Domain, jobs []Job, emit func(int, internal.Outcome)) {
	outcomes := make([]internal.Outcome, len(jobs))
	ready := make([]bool, len(jobs))
	completed := make(chan int, len(jobs))

	go func() {
		var g errgroup.Group
		g.SetLimit(b.workers)
		for i, job := range jobs {
			g.Go(func() error {
				outcomes[i] = b.runOne(ctx, domain, i, job)
				completed <- i
				return nil
			})
		}
		_ = g.Wait()
		close(completed)
	}()

	next := 0
	for i := range completed {
		ready[i] = true
		for next < len(jobs) && ready[next] {
			emit(next, outcomes[next])
			next++
		}
	}
}

func (b *BatchRunner) runOne(ctx context.Context, domain internal.Domain, pos int, job Job) (out internal.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("lookup panicked", "position", pos, "input", job.Input, "panic", r)
			out = internal.NewProviderError(fmt.Sprintf("internal error: %v", r))
		}
		b.metrics.ObserveLookup(string(domain), string(out.Kind), time.Since(start))
		if out.Kind == internal.OutcomeTransportFailure {
			b.metrics.IncUpstreamFailure(string(provider.ReasonOf(out.Err)))
		}
		b.log.Debug("lookup finished", "position", pos, "input", job.Input, "outcome", out.Kind, "status", out.Status())
	}()
	return job.Lookup(ctx)
}

// expandOutcome yields one row per record, or a single placeholder row carrying the status.
func expandOutcome(pos int, job Job, out internal.Outcome) []internal.ResultRow {
	if out.Kind == internal.OutcomeFound && len(out.Records) == 0 {
		out = internal.NewNotFound("")
	}
	base := internal.ResultRow{
		Position: pos,
		Input:    job.Input,
		Key:      job.Key,
		Outcome:  out.Kind,
		Status:   out.Status(),
	}
	if out.Kind != internal.OutcomeFound {
		return []internal.ResultRow{base}
	}
	rows := make([]internal.ResultRow, 0, len(out.Records))
	for _, rec := range out.Records {
		row := base
		row.Record = rec
		rows = append(rows, row)
	}
	return rows
}

// PhoneJobs normalizes raw values and binds each to the adapter. Invalid identifiers stay in
// the batch so they produce an explanatory row.
func PhoneJobs(l PhoneLookuper, raws []string) []Job {
	jobs := make([]Job, 0, len(raws))
	for _, id := range NormalizeIdentifiers(raws) {
		jobs = append(jobs, Job{
			Input: strings.TrimSpace(id.Raw),
			Key:   id.Normalized,
			Lookup: func(ctx context.Context) internal.Outcome {
				return l.Lookup(ctx, id)
			},
		})
	}
	return jobs
}

// VehicleJobs maps the category label once for the whole batch; a bad label fails the batch
// before any request is made.
func VehicleJobs(l VehicleLookuper, regs []string, categoryLabel string) ([]Job, error) {
	category, err := internal.ParseCategory(categoryLabel)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(regs))
	for _, reg := range regs {
		q := internal.LookupQuery{Raw: reg, RegistrationNumber: NormalizeRegistration(reg), Category: category}
		jobs = append(jobs, Job{
			Input: strings.TrimSpace(reg),
			Key:   q.RegistrationNumber,
			Lookup: func(ctx context.Context) internal.Outcome {
				return l.Lookup(ctx, q)
			},
		})
	}
	return jobs, nil
}
