package public

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/intelrouter/query-router-service/internal/auth"
	"github.com/intelrouter/query-router-service/internal/classify"
	"github.com/intelrouter/query-router-service/internal/limiter"
	"github.com/intelrouter/query-router-service/internal/llm"
	"github.com/intelrouter/query-router-service/internal/routing"
	"github.com/intelrouter/query-router-service/internal/storage/postgres"
	"github.com/intelrouter/query-router-service/internal/usage"
)

// memStore is an in-memory stand-in for the Postgres store. It also backs
// the budget and override limiters so tests control consumption directly.
type memStore struct {
	decisions     []routing.Decision
	records       []usage.Record
	sampleLabels  []string
	tokensUsed    int64
	overridesUsed int
}

func (m *memStore) InsertDecision(_ context.Context, d *routing.Decision) error {
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *memStore) InsertUsage(_ context.Context, r *usage.Record) error {
	m.records = append(m.records, *r)
	return nil
}

func (m *memStore) InsertSample(_ context.Context, _, difficulty, _ string) error {
	m.sampleLabels = append(m.sampleLabels, difficulty)
	return nil
}

func (m *memStore) ListDecisions(_ context.Context, userID string, limit int) ([]routing.Decision, error) {
	var out []routing.Decision
	for _, d := range m.decisions {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SummarizeUsage(_ context.Context, _ string, _ time.Time) (*postgres.UserSummary, error) {
	return &postgres.UserSummary{TotalTokens: m.tokensUsed, Requests: int64(len(m.records))}, nil
}

func (m *memStore) SumTokensSince(_ context.Context, _ string, _ time.Time) (int64, error) {
	return m.tokensUsed, nil
}

func (m *memStore) CountOverridesSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return m.overridesUsed, nil
}

type fakeBackend struct {
	answer string
	err    error
	model  string
}

func (f *fakeBackend) Complete(_ context.Context, model, _ string) (*llm.CompletionResponse, error) {
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.answer, LatencyMS: 5}, nil
}

func testModels(tier string) string {
	switch tier {
	case "EASY":
		return "model-easy"
	case "HARD":
		return "model-hard"
	default:
		return "model-medium"
	}
}

func newTestHandler(store *memStore, backend *fakeBackend) *Handler {
	gate := classify.NewGate(classify.NewRuleClassifier(), classify.NewLearnedClassifier(nil), 0.6, classify.TierHard)
	router := routing.NewRouter(gate, testModels, nil)
	ledger := limiter.NewUsageLedger(store, 100000)
	overrides := limiter.NewOverrideBudget(store, 3)
	records := usage.NewBuilder(usage.PerTierCost(0.001, 0.01, 0.1))
	return NewHandler(nil, router, store, ledger, overrides, backend, records, nil, usage.NewAuditLogger(nil))
}

func doQuery(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewBufferString(body))
	req = req.WithContext(WithUser(req.Context(), &auth.AuthenticatedUser{UserID: "u1", Role: auth.RoleUser}))
	rec := httptest.NewRecorder()
	h.HandleQuery(rec, req)
	return rec
}

func TestHandleQuery_EasyQuery(t *testing.T) {
	store := &memStore{}
	backend := &fakeBackend{answer: "4"}
	h := newTestHandler(store, backend)

	rec := doQuery(t, h, `{"query":"What is 2+2?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Difficulty != "EASY" || resp.Model != "model-easy" {
		t.Errorf("unexpected routing: %+v", resp)
	}
	if resp.Answer != "4" {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if backend.model != "model-easy" {
		t.Errorf("backend called with %s", backend.model)
	}

	if len(store.decisions) != 1 || len(store.records) != 1 {
		t.Fatalf("expected 1 decision and 1 record, got %d/%d", len(store.decisions), len(store.records))
	}
	record := store.records[0]
	if record.TotalTokens != record.TokensIn+record.TokensOut {
		t.Error("token sum invariant violated")
	}
	if record.QueryID != store.decisions[0].ID {
		t.Error("usage record not linked to decision")
	}
}

func TestHandleQuery_BudgetExhausted(t *testing.T) {
	store := &memStore{tokensUsed: 100000}
	h := newTestHandler(store, &fakeBackend{answer: "never"})

	rec := doQuery(t, h, `{"query":"What is 2+2?"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "BUDGET_EXCEEDED") {
		t.Errorf("expected BUDGET_EXCEEDED code, body: %s", rec.Body.String())
	}
	if len(store.decisions) != 0 || len(store.records) != 0 {
		t.Error("denied request must not write decision or usage rows")
	}
}

func TestHandleQuery_OverrideAccepted(t *testing.T) {
	store := &memStore{overridesUsed: 2}
	h := newTestHandler(store, &fakeBackend{answer: "long answer"})

	rec := doQuery(t, h, `{"query":"What is 2+2?","difficulty_override":"HARD"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Difficulty != "HARD" || resp.RoutingSource != "user_override" {
		t.Errorf("override not applied: %+v", resp)
	}
	if resp.OverrideRejected {
		t.Error("third override of the day must be accepted")
	}
}

func TestHandleQuery_OverrideOverQuotaDegrades(t *testing.T) {
	store := &memStore{overridesUsed: 3}
	h := newTestHandler(store, &fakeBackend{answer: "4"})

	rec := doQuery(t, h, `{"query":"What is 2+2?","difficulty_override":"HARD"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("over-quota override must degrade, not fail: got %d", rec.Code)
	}

	var resp QueryResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.OverrideRejected {
		t.Error("expected override_rejected flag")
	}
	if resp.Difficulty != "EASY" || resp.RoutingSource != "algorithmic" {
		t.Errorf("expected gate decision to stand: %+v", resp)
	}
}

func TestHandleQuery_InvalidOverride(t *testing.T) {
	h := newTestHandler(&memStore{}, &fakeBackend{answer: "4"})
	rec := doQuery(t, h, `{"query":"What is 2+2?","difficulty_override":"IMPOSSIBLE"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQuery_MissingQuery(t *testing.T) {
	h := newTestHandler(&memStore{}, &fakeBackend{answer: "4"})
	rec := doQuery(t, h, `{"query":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQuery_BackendFailure(t *testing.T) {
	store := &memStore{}
	h := newTestHandler(store, &fakeBackend{err: errors.New("upstream timeout")})

	rec := doQuery(t, h, `{"query":"What is 2+2?"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	if len(store.records) != 0 {
		t.Error("failed completion must not commit usage")
	}
	if len(store.decisions) != 1 {
		t.Fatalf("failed completion must still log its decision, got %d", len(store.decisions))
	}
	if !store.decisions[0].Failed() {
		t.Errorf("decision should carry the failure sentinel, model %s", store.decisions[0].ModelName)
	}
}

func TestHandleFeedback(t *testing.T) {
	store := &memStore{}
	h := newTestHandler(store, &fakeBackend{})

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback",
		bytes.NewBufferString(`{"query":"What is 2+2?","difficulty":"easy"}`))
	req = req.WithContext(WithUser(req.Context(), &auth.AuthenticatedUser{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.HandleFeedback(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(store.sampleLabels) != 1 || store.sampleLabels[0] != "EASY" {
		t.Errorf("expected one normalized EASY sample, got %v", store.sampleLabels)
	}
	// Feedback must never touch the decision or usage tables.
	if len(store.decisions) != 0 || len(store.records) != 0 {
		t.Error("feedback wrote outside the sample table")
	}
}

func TestHandleFeedback_InvalidDifficulty(t *testing.T) {
	h := newTestHandler(&memStore{}, &fakeBackend{})
	req := httptest.NewRequest(http.MethodPost, "/v1/feedback",
		bytes.NewBufferString(`{"query":"q","difficulty":"TRIVIAL"}`))
	req = req.WithContext(WithUser(req.Context(), &auth.AuthenticatedUser{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.HandleFeedback(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleOverridesRemaining(t *testing.T) {
	store := &memStore{overridesUsed: 1}
	h := newTestHandler(store, &fakeBackend{})

	req := httptest.NewRequest(http.MethodGet, "/v1/overrides/remaining", nil)
	req = req.WithContext(WithUser(req.Context(), &auth.AuthenticatedUser{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.HandleOverridesRemaining(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status limiter.OverrideStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Used != 1 || status.Quota != 3 || status.Remaining != 2 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestHandleQuery_Unauthenticated(t *testing.T) {
	h := newTestHandler(&memStore{}, &fakeBackend{})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewBufferString(`{"query":"hi"}`))
	rec := httptest.NewRecorder()
	h.HandleQuery(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
