package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/observability/metrics"
)

type enqueuerFake struct {
	got []string
	n   int
	err error
}

func (f *enqueuerFake) Enqueue(_ context.Context, addresses []string) (int, error) {
	f.got = append(f.got, addresses...)
	if f.err != nil {
		return f.n, f.err
	}
	return len(addresses), nil
}

type ledgerFake struct {
	entries map[string]*domain.ProcessingEntry
	asked   []string
	err     error
}

func (f *ledgerFake) Lookup(_ context.Context, address string) (*domain.ProcessingEntry, error) {
	f.asked = append(f.asked, address)
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(address) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup", errors.New("empty address"))
	}
	entry, ok := f.entries[domain.NormalizeAddress(address)]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "lookup", errors.New("not recorded"))
	}
	return entry, nil
}

func newTestHandler(cfg RouterConfig, enqueuer *enqueuerFake, ledger *ledgerFake) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(cfg, enqueuer, ledger, metrics.NewHTTPServerMetrics("api-test"), logger).Handler()
}

func TestEnqueueAcceptsJSONList(t *testing.T) {
	enqueuer := &enqueuerFake{}
	handler := newTestHandler(RouterConfig{}, enqueuer, &ledgerFake{})

	body := `{"address":"513 MALAGA DRIVE","addresses":["520 Novatan Rd S, Mobile, AL 36608"," "]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/addresses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(enqueuer.got) != 2 || enqueuer.got[0] != "513 MALAGA DRIVE" {
		t.Fatalf("unexpected enqueued addresses %v", enqueuer.got)
	}
	var resp map[string]int
	_ = json.NewDecoder(res.Body).Decode(&resp)
	if resp["enqueued"] != 2 {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestEnqueueAcceptsPlainTextLines(t *testing.T) {
	enqueuer := &enqueuerFake{}
	handler := newTestHandler(RouterConfig{}, enqueuer, &ledgerFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/addresses", strings.NewReader("1 Main St\r\n\r\n2 Main St\n"))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted || len(enqueuer.got) != 2 || enqueuer.got[1] != "2 Main St" {
		t.Fatalf("unexpected result %d %v", res.Code, enqueuer.got)
	}
}

func TestEnqueueRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{name: "wrong method", method: http.MethodGet, want: http.StatusMethodNotAllowed},
		{name: "invalid json", method: http.MethodPost, body: "{", want: http.StatusBadRequest},
		{name: "no addresses", method: http.MethodPost, body: `{"addresses":[]}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enqueuer := &enqueuerFake{}
			handler := newTestHandler(RouterConfig{}, enqueuer, &ledgerFake{})
			req := httptest.NewRequest(tc.method, "/v1/addresses", strings.NewReader(tc.body))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			if len(enqueuer.got) != 0 {
				t.Fatalf("nothing should be enqueued, got %v", enqueuer.got)
			}
		})
	}
}

func TestEnqueueMapsQueueFailureTo503(t *testing.T) {
	enqueuer := &enqueuerFake{n: 1, err: domain.WrapError(domain.ErrTemporary, "publish", errors.New("nats down"))}
	handler := newTestHandler(RouterConfig{}, enqueuer, &ledgerFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/addresses", strings.NewReader(`{"addresses":["a","b"]}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetLedgerEntry(t *testing.T) {
	recorded := time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)
	ledger := &ledgerFake{entries: map[string]*domain.ProcessingEntry{
		"513 malaga drive": {Key: "513 malaga drive", Status: domain.EntrySuccess, Timestamp: recorded},
	}}
	handler := newTestHandler(RouterConfig{}, &enqueuerFake{}, ledger)

	cases := []struct {
		name string
		path string
		want int
	}{
		{name: "query form", path: "/v1/ledger?address=513+Malaga+Drive", want: http.StatusOK},
		{name: "path form", path: "/v1/ledger/513%20MALAGA%20DRIVE", want: http.StatusOK},
		{name: "missing", path: "/v1/ledger?address=1+Nowhere+Rd", want: http.StatusNotFound},
		{name: "empty", path: "/v1/ledger", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, res.Code, res.Body.String())
			}
			if tc.want != http.StatusOK {
				return
			}
			var entry domain.ProcessingEntry
			if err := json.NewDecoder(res.Body).Decode(&entry); err != nil {
				t.Fatalf("decode entry: %v", err)
			}
			if entry.Status != domain.EntrySuccess || !entry.Timestamp.Equal(recorded) {
				t.Fatalf("unexpected entry %+v", entry)
			}
		})
	}
	if ledger.asked[1] != "513 MALAGA DRIVE" {
		t.Fatalf("expected decoded path address, got %q", ledger.asked[1])
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrTransport, "op", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
