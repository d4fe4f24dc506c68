package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/analysis"
	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/engine"
	"fx-signal-engine/internal/market"
	"fx-signal-engine/internal/patterns"
	"fx-signal-engine/internal/router"
)

type fakeStore struct {
	signals []*database.Signal
	reset   []int64
}

func (s *fakeStore) GetRecentSignals(_ context.Context, symbol string, limit int) ([]*database.Signal, error) {
	var out []*database.Signal
	for _, sig := range s.signals {
		if len(out) == limit {
			break
		}
		if symbol == "" || sig.Symbol == symbol {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *fakeStore) ResetEvent(_ context.Context, id int64) error {
	s.reset = append(s.reset, id)
	return nil
}

type fakeEventStore struct{}

func (fakeEventStore) GetUnprocessedEvents(context.Context, string, int) ([]*database.Event, error) {
	return nil, nil
}

func (fakeEventStore) MarkEventProcessed(context.Context, int64, error) error { return nil }

type fakeBackend struct{ name string }

func (b *fakeBackend) Name() string { return b.name }
func (b *fakeBackend) HandleCollectionCompleted(context.Context, string) error { return nil }

type fakeCollector struct{}

func (fakeCollector) Run(context.Context) {}

type fakeHealth struct{}

func (fakeHealth) HealthCheck(context.Context) error { return nil }

type fakeProvider struct{}

func (fakeProvider) GetHistorical(context.Context, string, market.Timeframe, time.Time, time.Time) ([]market.Candle, error) {
	return nil, nil
}
func (fakeProvider) GetLatest(context.Context, string, market.Timeframe) ([]market.Candle, error) {
	return nil, nil
}
func (fakeProvider) HealthCheck(context.Context) bool { return true }

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	backends := map[string]analysis.Backend{
		analysis.ModeThreeGate: &fakeBackend{name: analysis.ModeThreeGate},
		analysis.ModeLegacy:    &fakeBackend{name: analysis.ModeLegacy},
	}
	r, err := router.New(fakeEventStore{}, backends, analysis.ModeThreeGate, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	manager := router.NewManager(fakeCollector{}, r, fakeHealth{}, fakeProvider{}, zerolog.Nop())
	eng := engine.New(patterns.NewLoader(t.TempDir(), zerolog.Nop()), engine.Config{}, zerolog.Nop())
	return NewServer(":0", manager, eng, store, zerolog.Nop())
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	w := doRequest(s, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["mode"] != analysis.ModeThreeGate {
		t.Errorf("mode = %v", body["mode"])
	}
	if body["healthy"] != true {
		t.Errorf("healthy = %v", body["healthy"])
	}
}

func TestSignalsEndpoint(t *testing.T) {
	store := &fakeStore{signals: []*database.Signal{
		{ID: 1, Symbol: "USDJPY=X", SignalType: "BUY"},
		{ID: 2, Symbol: "USDJPY=X", SignalType: "SELL"},
	}}
	s := newTestServer(t, store)

	w := doRequest(s, http.MethodGet, "/api/signals?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}

	if w := doRequest(s, http.MethodGet, "/api/signals?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
}

func TestModeSwitchEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	w := doRequest(s, http.MethodPost, "/api/mode", `{"mode":"legacy"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if s.manager.Router().Mode() != analysis.ModeLegacy {
		t.Errorf("mode = %q after switch", s.manager.Router().Mode())
	}

	if w := doRequest(s, http.MethodPost, "/api/mode", `{"mode":"nonsense"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want 400", w.Code)
	}
	if w := doRequest(s, http.MethodPost, "/api/mode", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing mode status = %d, want 400", w.Code)
	}
}

func TestEventResetEndpoint(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store)

	w := doRequest(s, http.MethodPost, "/api/events/42/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(store.reset) != 1 || store.reset[0] != 42 {
		t.Errorf("reset ids = %v", store.reset)
	}

	if w := doRequest(s, http.MethodPost, "/api/events/abc/reset", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeStore{})
	if w := doRequest(s, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}
