package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
)

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration
}

type Router struct {
	cfg      RouterConfig
	enqueuer ports.AddressEnqueuer
	ledger   ports.LedgerReader
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

// NewRouter builds the API. httpMetrics may be nil, which disables /metrics.
func NewRouter(
	cfg RouterConfig,
	enqueuer ports.AddressEnqueuer,
	ledger ports.LedgerReader,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = 250 * time.Millisecond
	}
	return &Router{
		cfg:      cfg,
		enqueuer: enqueuer,
		ledger:   ledger,
		metrics:  httpMetrics,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/addresses", rt.enqueueAddresses)
	mux.HandleFunc("/v1/ledger", rt.getLedgerEntry)
	mux.HandleFunc("/v1/ledger/", rt.getLedgerEntry)

	var api http.Handler = mux
	api = backpressureMiddleware(api, rt.cfg.MaxInFlight, rt.cfg.QueueWait)
	api = rateLimitMiddleware(api, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)

	root := http.NewServeMux()
	if rt.metrics != nil {
		root.Handle("/metrics", rt.metrics.Handler())
		api = rt.metrics.Middleware(serviceName, api)
	}
	root.Handle("/", api)

	return requestIDMiddleware(accessLogMiddleware(rt.logger, root))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enqueueRequest struct {
	Address   string   `json:"address"`
	Addresses []string `json:"addresses"`
}

// enqueueAddresses accepts a JSON body {"address": ...} or {"addresses": [...]},
// or a text/plain body with one address per line.
func (rt *Router) enqueueAddresses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	addresses, err := readAddresses(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(addresses) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one address is required"})
		return
	}

	n, err := rt.enqueuer.Enqueue(r.Context(), addresses)
	if rt.metrics != nil {
		rt.metrics.RecordEnqueued(serviceName, n)
	}
	if err != nil {
		rt.logger.Warn("enqueue_failed", "request_id", requestIDFromContext(r.Context()), "enqueued", n, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"enqueued": n})
}

func readAddresses(r *http.Request) ([]string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read body", err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return domain.SplitAddressInput(string(body)), nil
	}

	var req enqueueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("invalid json"))
	}
	if req.Address != "" {
		req.Addresses = append([]string{req.Address}, req.Addresses...)
	}
	return domain.SplitAddressInput(strings.Join(req.Addresses, "\n")), nil
}

// getLedgerEntry serves GET /v1/ledger?address=... and GET /v1/ledger/{address}.
func (rt *Router) getLedgerEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	address := r.URL.Query().Get("address")
	if rest, ok := strings.CutPrefix(r.URL.Path, "/v1/ledger/"); ok && rest != "" {
		address = rest
	}

	entry, err := rt.ledger.Lookup(r.Context(), address)
	if rt.metrics != nil {
		rt.metrics.RecordLedgerLookup(serviceName, lookupOutcome(entry, err))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func lookupOutcome(entry *domain.ProcessingEntry, err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		return "miss"
	case err != nil:
		return "error"
	case entry.Succeeded():
		return "success"
	default:
		return string(entry.Status)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
