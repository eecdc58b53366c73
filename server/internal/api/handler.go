package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vitalops/vitalops/server/internal/alerts"
	"github.com/vitalops/vitalops/server/internal/receiver"
	"github.com/vitalops/vitalops/server/internal/store"
	"github.com/vitalops/vitalops/server/internal/vitals"
)

// PingMessage is the fixed greeting returned by GET /api/ping.
const PingMessage = "Welcome to the VitalOps API endpoints!"

// maxBodyBytes caps the size of a POSTed reading.
const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON object")

// Options tune a Handler. The zero value is usable.
type Options struct {
	// HistoryLimit is the history size returned when no limit is given.
	// Zero means store.DefaultHistoryLimit.
	HistoryLimit int

	// IngestMiddleware wraps POST /api/vitals, e.g. with an API key check.
	IngestMiddleware func(http.Handler) http.Handler
}

// Handler is the HTTP handler for all /api/* endpoints.
// Writes go through the receiver; reads come straight from the store.
type Handler struct {
	store        *store.Store
	receiver     *receiver.Receiver
	alerts       *alerts.Engine
	historyLimit int
	mux          *http.ServeMux
}

// New creates a Handler wired to the given store, receiver and alert engine
// and registers all routes. eng may be nil.
func New(st *store.Store, rc *receiver.Receiver, eng *alerts.Engine, opts Options) http.Handler {
	h := &Handler{
		store:        st,
		receiver:     rc,
		alerts:       eng,
		historyLimit: opts.HistoryLimit,
		mux:          http.NewServeMux(),
	}
	if h.historyLimit <= 0 {
		h.historyLimit = store.DefaultHistoryLimit
	}

	var ingest http.Handler = http.HandlerFunc(h.createReading)
	if opts.IngestMiddleware != nil {
		ingest = opts.IngestMiddleware(ingest)
	}

	h.mux.Handle("/api/vitals", ingest)
	h.mux.HandleFunc("/api/vitals/latest", h.latest)
	h.mux.HandleFunc("/api/vitals/history", h.history)
	h.mux.HandleFunc("/api/ping", h.ping)
	h.mux.HandleFunc("/api/health", h.health)
	h.mux.HandleFunc("/api/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// createReading handles POST /api/vitals. It validates the body and stores
// the reading, answering 201 with the stored value or 422 with field errors.
func (h *Handler) createReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var p vitals.Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		h.receiver.Reject(receiver.SourceHTTP, err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		h.receiver.Reject(receiver.SourceHTTP, errTrailingData)
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+errTrailingData.Error())
		return
	}

	reading, err := p.Reading()
	if err != nil {
		h.receiver.Reject(receiver.SourceHTTP, err)
		validationErr(w, err)
		return
	}

	stored, err := h.receiver.Accept(receiver.SourceHTTP, reading)
	if err != nil {
		validationErr(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, stored)
}

// latest returns GET /api/vitals/latest: the most recent reading or null.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stored, ok := h.store.Latest()
	if !ok {
		jsonResp(w, http.StatusOK, nil)
		return
	}
	jsonResp(w, http.StatusOK, stored)
}

// history returns GET /api/vitals/history?limit=N: up to N most recent
// readings, oldest first. A limit of zero or below yields an empty array.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := h.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			jsonResp(w, http.StatusUnprocessableEntity, ValidationResponse{
				Detail: []vitals.FieldError{{Field: "limit", Message: "limit must be an integer"}},
			})
			return
		}
		limit = n
	}

	jsonResp(w, http.StatusOK, h.store.History(limit))
}

// ping returns GET /api/ping, a fixed liveness message.
func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, PingResponse{Message: PingMessage})
}

// health returns GET /api/health: store size, latest reading time and the
// number of firing alerts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		Status:       "ok",
		ReadingCount: h.store.Count(),
	}
	if latest, ok := h.store.Latest(); ok {
		resp.LatestAt = latest.TimestampServer.UTC().Format(time.RFC3339)
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/alerts: firing alerts plus those resolved in
// the last hour, newest first.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// validationErr writes a 422 with one detail entry per offending field.
func validationErr(w http.ResponseWriter, err error) {
	inv, ok := vitals.AsInvalid(err)
	if !ok {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusUnprocessableEntity, ValidationResponse{Detail: inv.Errors})
}
