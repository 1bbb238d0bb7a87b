package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/aggregate"
	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/dispatch"
	"github.com/financeai/bff/internal/gateway"
	"github.com/financeai/bff/internal/identity"
	"github.com/financeai/bff/internal/interface/middleware"
	"github.com/financeai/bff/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return l
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testGateway() *gateway.Gateway {
	return gateway.New(2*time.Second, gateway.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond}, nil)
}

type env struct {
	handler *BFFHandler
	store   cache.Store
	router  *gin.Engine
}

// newEnv wires a BFF surface against the given fake upstreams, with a
// permissive resolver authenticating requests unless mode says otherwise.
func newEnv(t *testing.T, mode identity.Mode, txBase, analyticsBase, fnBase string) *env {
	t.Helper()
	logger := quietLogger()
	gw := testGateway()
	store := cache.NewMemoryStore(time.Minute)
	agg := aggregate.New(gw, store, logger, txBase, fnBase+"/functionContext")
	disp := dispatch.New(gw, store, logger, txBase, fnBase, dispatch.OwnerService)
	h := NewBFFHandler(agg, disp, gw, store, logger, mode, txBase, analyticsBase, fnBase)

	resolver, err := identity.New(context.Background(), identity.Permissive, "", "", logger)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	r := gin.New()
	grp := r.Group("/bff")
	r.GET("/bff/health", h.Health)
	r.GET("/bff/metrics", h.Metrics)
	grp.Use(middleware.Auth(resolver, logger))
	grp.GET("/whoami", h.Whoami)
	grp.GET("/aggregate", h.Aggregate)
	grp.GET("/transactions", h.ListTransactions)
	grp.POST("/transactions", h.CreateTransaction)
	grp.PUT("/transactions/:id", h.UpdateTransaction)
	grp.DELETE("/transactions/:id", h.DeleteTransaction)

	return &env{handler: h, store: store, router: r}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGuard(t *testing.T) {
	e := newEnv(t, identity.Permissive, "http://svc.invalid", "http://an.invalid", "http://fn.invalid")

	t.Run("missing header", func(t *testing.T) {
		w := doJSON(t, e.router, http.MethodGet, "/bff/whoami", "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
		if !strings.Contains(w.Body.String(), "missing_authorization") {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("bad token", func(t *testing.T) {
		w := doJSON(t, e.router, http.MethodGet, "/bff/whoami", "garbage", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("lowercase scheme accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/bff/whoami", nil)
		req.Header.Set("Authorization", "bearer user:alice")
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("resolved identity exposed", func(t *testing.T) {
		w := doJSON(t, e.router, http.MethodGet, "/bff/whoami", "user:alice", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var out struct {
			User identity.User `json:"user"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.User.ID != "alice" {
			t.Errorf("user id = %q, want alice", out.User.ID)
		}
	})
}

func TestHealthIsPublic(t *testing.T) {
	e := newEnv(t, identity.Permissive, "http://svc.invalid", "http://an.invalid", "http://fn.invalid")
	w := doJSON(t, e.router, http.MethodGet, "/bff/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		OK       bool `json:"ok"`
		MockAuth bool `json:"mockAuth"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK || !out.MockAuth {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	e := newEnv(t, identity.Permissive, "http://svc.invalid", "http://an.invalid", "http://fn.invalid")
	if err := e.store.Set(context.Background(), cache.AggregateKey("u1"), "x"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w := doJSON(t, e.router, http.MethodGet, "/bff/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		CacheKeys int     `json:"cacheKeys"`
		Uptime    float64 `json:"uptime"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.CacheKeys != 1 {
		t.Errorf("cacheKeys = %d, want 1", out.CacheKeys)
	}
	if out.Uptime < 0 {
		t.Errorf("uptime = %v", out.Uptime)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "t1", "userId": "alice", "name": "Pay", "type": "deposit", "amount": 100.0, "date": "2024-04-01T12:00:00Z"},
		})
	}))
	defer svc.Close()
	fn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"nextMonth": 42.0})
	}))
	defer fn.Close()

	e := newEnv(t, identity.Permissive, svc.URL, "http://an.invalid", fn.URL)

	w := doJSON(t, e.router, http.MethodGet, "/bff/aggregate", "user:alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out struct {
		FromCache bool    `json:"fromCache"`
		UserID    string  `json:"userId"`
		Balance   float64 `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.FromCache {
		t.Error("first call reported fromCache")
	}
	if out.UserID != "alice" || out.Balance != 100 {
		t.Errorf("body = %s", w.Body.String())
	}

	w = doJSON(t, e.router, http.MethodGet, "/bff/aggregate", "user:alice", "")
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.FromCache {
		t.Error("second call missed the cache")
	}
}

func TestCreateTransactionIgnoresSuppliedUserInTrustedMode(t *testing.T) {
	var forwarded string
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		_ = json.NewDecoder(r.Body).Decode(&p)
		forwarded, _ = p["userId"].(string)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tx_1"})
	}))
	defer svc.Close()

	logger := quietLogger()
	gw := testGateway()
	store := cache.NewMemoryStore(time.Minute)
	disp := dispatch.New(gw, store, logger, svc.URL, "http://fn.invalid", dispatch.OwnerService)
	h := NewBFFHandler(nil, disp, gw, store, logger, identity.Trusted, svc.URL, "", "")

	r := gin.New()
	// stands in for verified-token auth
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserIDKey, "real-user")
	})
	r.POST("/bff/transactions", h.CreateTransaction)

	body := `{"userId":"evil","name":"Sneaky","type":"expense","category":"other","paymentMethod":"cash","amount":5}`
	w := doJSON(t, r, http.MethodPost, "/bff/transactions", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if forwarded != "real-user" {
		t.Errorf("forwarded userId = %q, want real-user", forwarded)
	}
}

func TestCreateTransactionValidationResponse(t *testing.T) {
	e := newEnv(t, identity.Permissive, "http://svc.invalid", "http://an.invalid", "http://fn.invalid")

	body := `{"name":"Coffee","type":"income","category":"food","paymentMethod":"cash","amount":4}`
	w := doJSON(t, e.router, http.MethodPost, "/bff/transactions", "user:alice", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out struct {
		Error   string   `json:"error"`
		Field   string   `json:"field"`
		Allowed []string `json:"allowed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != "validation_failed" || out.Field != "type" {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(out.Allowed) != 3 {
		t.Errorf("allowed = %v", out.Allowed)
	}
}

func TestCreateTransactionMalformedBody(t *testing.T) {
	e := newEnv(t, identity.Permissive, "http://svc.invalid", "http://an.invalid", "http://fn.invalid")

	w := doJSON(t, e.router, http.MethodPost, "/bff/transactions", "user:alice", `{"name": "Coffee",`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != "invalid_payload" {
		t.Errorf("error = %q", out.Error)
	}
	if out.Details["payload"] != "invalid json" {
		t.Errorf("details = %v", out.Details)
	}
}

func TestUpdateTransactionPropagatesUpstreamReply(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found_or_not_owned"}`, http.StatusNotFound)
	}))
	defer svc.Close()

	e := newEnv(t, identity.Permissive, svc.URL, "http://an.invalid", "http://fn.invalid")

	w := doJSON(t, e.router, http.MethodPut, "/bff/transactions/tx_missing", "user:alice", `{"name":"Rent"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want upstream 404 passthrough", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found_or_not_owned") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestDeleteTransactionEndpoint(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tx_1"})
	}))
	defer svc.Close()

	e := newEnv(t, identity.Permissive, svc.URL, "http://an.invalid", "http://fn.invalid")

	w := doJSON(t, e.router, http.MethodDelete, "/bff/transactions/tx_1", "user:alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestListTransactionsPassthrough(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		if got := r.URL.Query().Get("userId"); got != "alice" {
			t.Errorf("userId = %q", got)
		}
		_, _ = w.Write([]byte(`[{"id":"t1"}]`))
	}))
	defer svc.Close()

	e := newEnv(t, identity.Permissive, svc.URL, "http://an.invalid", "http://fn.invalid")

	w := doJSON(t, e.router, http.MethodGet, "/bff/transactions?limit=5", "user:alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `[{"id":"t1"}]` {
		t.Errorf("body = %s", w.Body.String())
	}
}
