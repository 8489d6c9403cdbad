package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"infolookup/internal"
	"infolookup/internal/app"
	"infolookup/internal/pipeline"
	"infolookup/internal/util"
)

const maxBodyBytes = 1 << 20

// Handler serves the lookup HTTP API.
type Handler struct {
	app *app.App
	log *slog.Logger
}

func New(a *app.App) *Handler {
	return &Handler{app: a, log: a.Log.With("component", "http")}
}

// Routes builds the router with every endpoint mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.app.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Post("/get-info/", h.handleGetInfo)
	r.Post("/get-vehicle-info/", h.handleGetVehicleInfo)

	r.Route("/lookup", func(r chi.Router) {
		r.Post("/phone", h.handleBatch(internal.DomainPhone))
		r.Post("/vehicle", h.handleBatch(internal.DomainVehicle))
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetInfo answers a single phone/CNIC lookup with the first record flattened at the
// top level and every record under "records". Lookup failures are reported as {"error": ...}
// with status 200.
func (h *Handler) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("phone_number"))
	if value == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	res, err := h.app.LookupPhones(r.Context(), internal.SourceText, []string{value}, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, singleResponse(res.Table))
}

func (h *Handler) handleGetVehicleInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reg := strings.TrimSpace(q.Get("reg_no"))
	if reg == "" {
		writeError(w, http.StatusBadRequest, internal.ErrMissingRegistration.Error())
		return
	}

	res, err := h.app.LookupVehicles(r.Context(), internal.SourceText, []string{reg}, q.Get("category"), nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, singleResponse(res.Table))
}

type batchRequest struct {
	Inputs   string `json:"inputs"`
	Category string `json:"category,omitempty"`
}

type batchResponse struct {
	RunID   string                       `json:"runId,omitempty"`
	Columns []string                     `json:"columns"`
	Rows    []map[string]string          `json:"rows"`
	Counts  map[internal.OutcomeKind]int `json:"counts"`
}

func (h *Handler) handleBatch(domain internal.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		values := util.SplitItems(req.Inputs)
		var (
			res app.RunResult
			err error
		)
		if domain == internal.DomainVehicle {
			res, err = h.app.LookupVehicles(r.Context(), internal.SourceText, values, req.Category, nil)
		} else {
			res, err = h.app.LookupPhones(r.Context(), internal.SourceText, values, nil)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, batchResponse{
			RunID:   res.RunID,
			Columns: res.Table.Columns(),
			Rows:    res.Table.Flat(),
			Counts:  res.Table.Counts(),
		})
	}
}

func singleResponse(table internal.ResultTable) map[string]any {
	if len(table.Rows) == 0 {
		return map[string]any{"error": internal.StatusNotFound}
	}
	first := table.Rows[0]
	if first.Record == nil {
		return map[string]any{"error": first.Status}
	}

	cols := table.Domain.Columns()
	out := map[string]any{}
	for i, v := range first.Record.Values() {
		out[cols[i]] = v
	}
	records := make([]internal.CanonicalRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		records = append(records, row.Record)
	}
	out["records"] = records
	return out
}

// fail maps caller-side precondition errors to 400; anything else is a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyBatch),
		errors.Is(err, internal.ErrMissingCategory),
		errors.Is(err, internal.ErrUnknownCategory),
		errors.Is(err, internal.ErrMissingRegistration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "lookup failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
