package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/Regdarim/arni-worker/internal/api"
	"github.com/Regdarim/arni-worker/internal/config"
	"github.com/Regdarim/arni-worker/internal/kv"
)

func newTestEngine(t *testing.T, store kv.Store) *gin.Engine {
	t.Helper()
	return api.New(config.Default(), store, "").Engine()
}

func do(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := sonic.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	w := do(t, engine, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	out := decode(t, w)
	if out["status"] != "ok" {
		t.Errorf("status field = %v", out["status"])
	}
	if out["kv_bound"] != true {
		t.Errorf("kv_bound = %v", out["kv_bound"])
	}
}

func TestHealthWithoutStore(t *testing.T) {
	engine := newTestEngine(t, nil)
	w := do(t, engine, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if out := decode(t, w); out["kv_bound"] != false {
		t.Errorf("kv_bound = %v", out["kv_bound"])
	}
}

func TestKVNotBound(t *testing.T) {
	engine := newTestEngine(t, nil)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/usage"},
		{http.MethodGet, "/usage/stats"},
		{http.MethodGet, "/usage/quota"},
		{http.MethodGet, "/webhooks"},
		{http.MethodGet, "/tasks"},
		{http.MethodGet, "/memory"},
		{http.MethodPost, "/logs"},
		{http.MethodPost, "/cron"},
	}
	for _, p := range paths {
		w := do(t, engine, p.method, p.path, "")
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want 500", p.method, p.path, w.Code)
			continue
		}
		if out := decode(t, w); out["error"] != "KV not bound" {
			t.Errorf("%s %s: error = %v", p.method, p.path, out["error"])
		}
	}
}

func TestPostUsageAndStats(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	body := `{"provider":"anthropic","model":"claude-opus-4","tokens_in":1000,"tokens_out":500,"cost":0.05,"task_type":"planning"}`
	w := do(t, engine, http.MethodPost, "/usage", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /usage: status = %d body = %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["logged"] != true {
		t.Errorf("logged = %v", out["logged"])
	}
	id, _ := out["id"].(string)
	if !strings.HasPrefix(id, "usage:") {
		t.Errorf("id = %q", id)
	}

	w = do(t, engine, http.MethodGet, "/usage/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /usage/stats: status = %d", w.Code)
	}
	stats, ok := decode(t, w)["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats missing: %s", w.Body.String())
	}
	totals, _ := stats["totals"].(map[string]any)
	if totals["requests"] != float64(1) || totals["tokens_in"] != float64(1000) {
		t.Errorf("totals = %v", totals)
	}
	providers, _ := stats["providers"].(map[string]any)
	if _, ok := providers["anthropic"]; !ok {
		t.Errorf("providers = %v", providers)
	}
}

func TestPostUsagePremiumFeedsQuota(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	body := `{"provider":"anthropic","model":"claude-opus-4","tokens_in":1000,"tokens_out":500,"cost":0.05,"task_type":"planning"}`
	if w := do(t, engine, http.MethodPost, "/usage", body); w.Code != http.StatusOK {
		t.Fatalf("POST /usage: status = %d", w.Code)
	}

	w := do(t, engine, http.MethodGet, "/usage/quota", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /usage/quota: status = %d", w.Code)
	}
	out := decode(t, w)
	if out["tokensUsed"] != float64(1500) {
		t.Errorf("tokensUsed = %v, want 1500", out["tokensUsed"])
	}
	if out["sessions"] != float64(1) {
		t.Errorf("sessions = %v, want 1", out["sessions"])
	}
	if out["tokensLimit"] != float64(88000) || out["weeklyTokensLimit"] != float64(400000) {
		t.Errorf("limits = %v/%v", out["tokensLimit"], out["weeklyTokensLimit"])
	}
	days, _ := out["daysUntilWeekReset"].(float64)
	if days < 1 || days > 7 {
		t.Errorf("daysUntilWeekReset = %v", days)
	}
}

func TestPostUsageNonPremiumSkipsQuota(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	body := `{"provider":"gemini","model":"gemini-2.5-pro","tokens_in":1000,"tokens_out":500}`
	if w := do(t, engine, http.MethodPost, "/usage", body); w.Code != http.StatusOK {
		t.Fatalf("POST /usage: status = %d", w.Code)
	}

	out := decode(t, do(t, engine, http.MethodGet, "/usage/quota", ""))
	if out["tokensUsed"] != float64(0) {
		t.Errorf("tokensUsed = %v, want 0", out["tokensUsed"])
	}
}

func TestPostUsageEmptyBodyDefaults(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	if w := do(t, engine, http.MethodPost, "/usage", ""); w.Code != http.StatusOK {
		t.Fatalf("POST /usage with empty body: status = %d", w.Code)
	}

	stats, _ := decode(t, do(t, engine, http.MethodGet, "/usage/stats", ""))["stats"].(map[string]any)
	providers, _ := stats["providers"].(map[string]any)
	if _, ok := providers["unknown"]; !ok {
		t.Errorf("providers = %v, want unknown bucket", providers)
	}
}

func TestGetUsageLive(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	if w := do(t, engine, http.MethodPost, "/usage", `{"provider":"gemini","model":"g","tokens_in":1}`); w.Code != http.StatusOK {
		t.Fatal("seed event failed")
	}

	w := do(t, engine, http.MethodGet, "/usage/live", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /usage/live: status = %d", w.Code)
	}
	out := decode(t, w)
	if out["count"] != float64(1) {
		t.Errorf("count = %v", out["count"])
	}
}

func TestWebhookLifecycle(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	w := do(t, engine, http.MethodPost, "/webhooks", `{"name":"deploy"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	created := decode(t, w)
	id, _ := created["id"].(string)
	if id == "" || created["name"] != "deploy" {
		t.Fatalf("created = %v", created)
	}

	out := decode(t, do(t, engine, http.MethodGet, "/webhooks", ""))
	if out["count"] != float64(1) {
		t.Errorf("list count = %v", out["count"])
	}

	w = do(t, engine, http.MethodPost, "/hook/"+id, `{"ref":"main"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("deliver: status = %d", w.Code)
	}
	if out := decode(t, w); out["deliveries"] != float64(1) {
		t.Errorf("deliveries = %v", out["deliveries"])
	}

	got := decode(t, do(t, engine, http.MethodGet, "/webhooks/"+id, ""))
	if got["last_payload"] != `{"ref":"main"}` {
		t.Errorf("last_payload = %v", got["last_payload"])
	}

	w = do(t, engine, http.MethodDelete, "/webhooks/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	if w := do(t, engine, http.MethodGet, "/webhooks/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", w.Code)
	}
}

func TestHookUnknownID(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	if w := do(t, engine, http.MethodPost, "/hook/nope", `{}`); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	w := do(t, engine, http.MethodPost, "/tasks", `{"title":"ship it","priority":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	created := decode(t, w)
	id, _ := created["id"].(string)
	if created["status"] != "pending" {
		t.Errorf("default status = %v", created["status"])
	}

	w = do(t, engine, http.MethodPatch, "/tasks/"+id, `{"status":"done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: status = %d", w.Code)
	}
	patched := decode(t, w)
	if patched["status"] != "done" {
		t.Errorf("patched status = %v", patched["status"])
	}
	// Fields absent from the patch keep their values.
	if patched["title"] != "ship it" || patched["priority"] != float64(2) {
		t.Errorf("patched = %v", patched)
	}

	if w := do(t, engine, http.MethodDelete, "/tasks/"+id, ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d", w.Code)
	}
}

func TestTaskDefaultsAndEmptyBody(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	w := do(t, engine, http.MethodPost, "/tasks", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create with empty body: status = %d", w.Code)
	}
	if out := decode(t, w); out["title"] != "untitled" {
		t.Errorf("title = %v", out["title"])
	}
}

func TestNoteLifecycle(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	w := do(t, engine, http.MethodPost, "/notes", `{"title":"ideas","content":"kv all the things","tags":["infra"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	id, _ := decode(t, w)["id"].(string)

	got := decode(t, do(t, engine, http.MethodGet, "/notes/"+id, ""))
	if got["content"] != "kv all the things" {
		t.Errorf("content = %v", got["content"])
	}

	out := decode(t, do(t, engine, http.MethodGet, "/notes", ""))
	if out["count"] != float64(1) {
		t.Errorf("list count = %v", out["count"])
	}

	if w := do(t, engine, http.MethodDelete, "/notes/"+id, ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d", w.Code)
	}
}

func TestMemoryPutGetPatch(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	w := do(t, engine, http.MethodPut, "/memory/prefs", `{"theme":"dark","limit":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: status = %d body = %s", w.Code, w.Body.String())
	}

	w = do(t, engine, http.MethodGet, "/memory/prefs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	if w.Body.String() != `{"theme":"dark","limit":5}` {
		t.Errorf("document not stored verbatim: %s", w.Body.String())
	}

	w = do(t, engine, http.MethodPatch, "/memory/prefs", `{"limit":9,"lang":"en"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: status = %d", w.Code)
	}
	merged := decode(t, w)
	if merged["theme"] != "dark" || merged["limit"] != float64(9) || merged["lang"] != "en" {
		t.Errorf("merged = %v", merged)
	}

	keys := decode(t, do(t, engine, http.MethodGet, "/memory", ""))
	if keys["count"] != float64(1) {
		t.Errorf("key count = %v", keys["count"])
	}

	if w := do(t, engine, http.MethodDelete, "/memory/prefs", ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d", w.Code)
	}
	if w := do(t, engine, http.MethodGet, "/memory/prefs", ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", w.Code)
	}
}

func TestMemoryPatchCreatesDocument(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	w := do(t, engine, http.MethodPatch, "/memory/fresh", `{"a":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch absent doc: status = %d", w.Code)
	}
	if out := decode(t, w); out["a"] != float64(1) {
		t.Errorf("merged = %v", out)
	}
}

func TestMemoryRejectsInvalidJSON(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	if w := do(t, engine, http.MethodPut, "/memory/bad", `{broken`); w.Code != http.StatusBadRequest {
		t.Errorf("put invalid: status = %d", w.Code)
	}
	if w := do(t, engine, http.MethodPatch, "/memory/bad", `[1,2]`); w.Code != http.StatusBadRequest {
		t.Errorf("patch non-object: status = %d", w.Code)
	}
}

func TestLogsAppendGetClear(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	w := do(t, engine, http.MethodPost, "/logs", `{"level":"warn","message":"disk pressure","meta":{"free_mb":120}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("append: status = %d", w.Code)
	}
	out := decode(t, w)
	id, _ := out["id"].(string)
	if out["logged"] != true || !strings.HasPrefix(id, "log:") {
		t.Errorf("append response = %v", out)
	}

	got := decode(t, do(t, engine, http.MethodGet, "/logs", ""))
	if got["count"] != float64(1) {
		t.Fatalf("count = %v", got["count"])
	}
	logs, _ := got["logs"].([]any)
	first, _ := logs[0].(map[string]any)
	if first["level"] != "warn" || first["message"] != "disk pressure" {
		t.Errorf("entry = %v", first)
	}

	cleared := decode(t, do(t, engine, http.MethodDelete, "/logs", ""))
	if cleared["deleted"] != float64(1) {
		t.Errorf("deleted = %v", cleared["deleted"])
	}
	if got := decode(t, do(t, engine, http.MethodGet, "/logs", "")); got["count"] != float64(0) {
		t.Errorf("count after clear = %v", got["count"])
	}
}

func TestLogDefaultsLevelInfo(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	if w := do(t, engine, http.MethodPost, "/logs", `{"message":"hello"}`); w.Code != http.StatusOK {
		t.Fatalf("append: status = %d", w.Code)
	}
	got := decode(t, do(t, engine, http.MethodGet, "/logs", ""))
	logs, _ := got["logs"].([]any)
	first, _ := logs[0].(map[string]any)
	if first["level"] != "info" {
		t.Errorf("level = %v, want info", first["level"])
	}
}

func TestCronReportsRuns(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())

	out := decode(t, do(t, engine, http.MethodPost, "/cron", ""))
	if out["runs"] != float64(1) {
		t.Errorf("runs = %v", out["runs"])
	}
	out = decode(t, do(t, engine, http.MethodPost, "/cron", ""))
	if out["runs"] != float64(2) {
		t.Errorf("runs = %v", out["runs"])
	}
	if _, ok := out["completed_at"].(string); !ok {
		t.Errorf("completed_at missing: %v", out)
	}
}

func TestProxyForwardsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "yes" {
			t.Errorf("header not forwarded")
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, nil) // proxy works without a store
	body := `{"url":"` + upstream.URL + `","method":"GET","headers":{"X-Probe":"yes"}}`
	w := do(t, engine, http.MethodPost, "/proxy", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["status"] != float64(200) || out["body"] != "pong" {
		t.Errorf("response = %v", out)
	}
}

func TestProxyRejectsBadRequests(t *testing.T) {
	engine := newTestEngine(t, nil)
	if w := do(t, engine, http.MethodPost, "/proxy", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d", w.Code)
	}
	if w := do(t, engine, http.MethodPost, "/proxy", `{"url":"ftp://example.com"}`); w.Code != http.StatusBadGateway {
		t.Errorf("bad scheme: status = %d", w.Code)
	}
}

func TestDashboardRendersHTML(t *testing.T) {
	engine := newTestEngine(t, kv.NewMemoryStore())
	w := do(t, engine, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "No usage recorded yet.") {
		t.Errorf("empty state missing from dashboard")
	}
}

func TestDashboardWithoutStore(t *testing.T) {
	engine := newTestEngine(t, nil)
	if w := do(t, engine, http.MethodGet, "/", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
