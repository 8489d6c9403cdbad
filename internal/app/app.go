// Package app wires the long-lived collaborators shared by every command: configuration,
// logger, metrics, the upstream HTTP client, provider adapters and storage.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"infolookup/internal"
	"infolookup/internal/config"
	"infolookup/internal/logger"
	"infolookup/internal/metrics"
	"infolookup/internal/pipeline"
	"infolookup/internal/provider"
	"infolookup/internal/storage"
)

type App struct {
	Config  config.Config
	Log     *slog.Logger
	Metrics *metrics.Metrics
	Phone   *provider.PhoneAdapter
	Vehicle *provider.VehicleAdapter
	Runner  *pipeline.BatchRunner
	DB      *storage.DB
}

// New validates cfg and builds the application context. It is created once per process.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	m := metrics.New()
	client := provider.NewClient(cfg)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:  cfg,
		Log:     log,
		Metrics: m,
		Phone:   provider.NewPhoneAdapter(client, cfg, log),
		Vehicle: provider.NewVehicleAdapter(client, cfg, log),
		Runner:  pipeline.NewBatchRunner(cfg.LookupWorkers, m, log),
		DB:      db,
	}, nil
}

// Close flushes the metrics textfile (when configured) and closes storage.
func (a *App) Close() error {
	var errs []error
	if err := a.Metrics.WriteTextfile(a.Config.MetricsTextfile); err != nil {
		errs = append(errs, err)
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) Processor() *pipeline.ProcessingService {
	return pipeline.NewProcessingService(a.DB, a.Config, a.Phone, a.Runner, a.Log)
}

// RunResult is a finished batch and the run it was recorded under.
type RunResult struct {
	RunID string
	Table internal.ResultTable
}

// LookupPhones runs a phone/CNIC batch and records it. Recording failures are logged and do
// not discard the results.
func (a *App) LookupPhones(ctx context.Context, source internal.InputSource, raws []string, onProgress func(pipeline.Progress)) (RunResult, error) {
	return a.run(ctx, internal.DomainPhone, source, len(raws), pipeline.PhoneJobs(a.Phone, raws), onProgress)
}

// LookupVehicles runs a vehicle batch with one category label for all registrations.
func (a *App) LookupVehicles(ctx context.Context, source internal.InputSource, regs []string, categoryLabel string, onProgress func(pipeline.Progress)) (RunResult, error) {
	if len(regs) == 0 {
		return RunResult{}, pipeline.ErrEmptyBatch
	}
	jobs, err := pipeline.VehicleJobs(a.Vehicle, regs, categoryLabel)
	if err != nil {
		return RunResult{}, err
	}
	return a.run(ctx, internal.DomainVehicle, source, len(regs), jobs, onProgress)
}

func (a *App) run(ctx context.Context, domain internal.Domain, source internal.InputSource, inputs int, jobs []pipeline.Job, onProgress func(pipeline.Progress)) (RunResult, error) {
	started := time.Now().UTC()
	table, err := a.Runner.Run(ctx, domain, jobs, onProgress)
	if err != nil {
		return RunResult{Table: table}, err
	}

	runID, err := a.DB.SaveRun(internal.RunRow{
		Domain:    domain,
		Source:    string(source),
		StartedAt: started.Format(time.RFC3339),
		Inputs:    inputs,
	}, table, nil)
	if err != nil {
		a.Log.Warn("run not recorded", "domain", domain, "err", err)
	}
	return RunResult{RunID: runID, Table: table}, nil
}
