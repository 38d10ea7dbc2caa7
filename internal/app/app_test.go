package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/chat"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/metrics"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ratelimit"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/resolver"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

const testSecret = "s3cret"

// countingAnswerer wraps a composer and counts calls that reach it.
type countingAnswerer struct {
	inner *chat.Composer
	calls atomic.Int32
}

func (a *countingAnswerer) Authorize(credential string) bool {
	return a.inner.Authorize(credential)
}

func (a *countingAnswerer) AnswerAuthorized(ctx context.Context, credential string, req chat.Request) (chat.Reply, error) {
	reply, err := a.inner.AnswerAuthorized(ctx, credential, req)
	if err == nil {
		a.calls.Add(1)
	}
	return reply, err
}

type fakePinger struct{ err error }

func (p fakePinger) Driver() string               { return "fake" }
func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestComposer(t *testing.T) (*chat.Composer, *storage.DB) {
	t.Helper()

	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	loc := config.FixedLocation(3)
	clock := timeutil.FixedClock(time.Date(2025, 10, 20, 9, 0, 0, 0, loc))
	c, err := chat.New(chat.Options{
		Classifier:   intent.NewRegexClassifier(clock, loc),
		Resolver:     resolver.New(resolver.Options{Dining: db, Announcements: db, Clock: clock, Location: loc}),
		SharedSecret: testSecret,
	})
	require.NoError(t, err)
	return c, db
}

func newTestRouter(t *testing.T, mutate func(*RouterConfig)) (*gin.Engine, *countingAnswerer, *storage.DB) {
	t.Helper()

	composer, db := newTestComposer(t)
	answerer := &countingAnswerer{inner: composer}
	cfg := RouterConfig{Answerer: answerer, Storage: db}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg), answerer, db
}

func postJSON(router http.Handler, path, credential, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set(HeaderAuth, credential)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLiveness(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestRouter(t, nil)

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String(), path)
		assert.NotEmpty(t, w.Header().Get(HeaderRequestID), "every response carries a request ID")
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newTestRouter(t, func(c *RouterConfig) {
			c.Status = func() gin.H { return gin.H{"features": gin.H{"sync": true}} }
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, config.DriverSQLite, body["storage"])
		assert.Contains(t, body, "features")
	})

	t.Run("storage down", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newTestRouter(t, func(c *RouterConfig) {
			c.Storage = fakePinger{err: errors.New("connection refused")}
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "storage unavailable")
	})
}

func TestAnswer_RequiresSharedSecret(t *testing.T) {
	t.Parallel()
	router, answerer, _ := newTestRouter(t, nil)

	for _, credential := range []string{"", "wrong"} {
		w := postJSON(router, "/answer", credential, `{"text":"bugün yemek ne"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := postJSON(router, "/api/v1/chat", "wrong", `{"message":"bugün yemek ne"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Zero(t, answerer.calls.Load(), "unauthenticated requests must never reach the composer")
}

func TestAnswer_DiningFromStore(t *testing.T) {
	t.Parallel()
	router, answerer, db := newTestRouter(t, nil)

	require.NoError(t, db.UpsertDining(context.Background(), &storage.DiningRecord{
		Date:     "2025-10-20",
		Items:    []string{"Mercimek Çorbası", "Tavuk Sote"},
		Location: "Akdeniz Üniversitesi Yemekhanesi",
		Source:   storage.SourceWebsite,
	}))

	w := postJSON(router, "/answer", testSecret, `{"text":"bugün yemek ne","user":"u1","chat_id":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp answerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "Mercimek Çorbası")
	assert.Contains(t, resp.Answer, "20 Ekim 2025 Pazartesi")
	assert.Equal(t, int32(1), answerer.calls.Load())
}

func TestAnswer_EmptyText(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestRouter(t, nil)

	for _, body := range []string{`{"text":"   "}`, ``} {
		w := postJSON(router, "/answer", testSecret, body)
		require.Equal(t, http.StatusOK, w.Code, "body %q", body)
		assert.JSONEq(t, `{"answer":"`+chat.EmptyMessageReply+`"}`, w.Body.String())
	}
}

func TestAnswer_InvalidJSON(t *testing.T) {
	t.Parallel()
	router, answerer, _ := newTestRouter(t, nil)

	w := postJSON(router, "/answer", testSecret, `{"text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, answerer.calls.Load())
}

func TestChat_ReportsIntentAsSource(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestRouter(t, nil)

	tests := []struct {
		message    string
		wantSource intent.Name
		wantReply  string
	}{
		{"merhaba", intent.Fallback, chat.HelpReply},
		{"yarın ders var mı", intent.TeamsAnnouncement, resolver.ClarifyCourse},
		{"   ", intent.Fallback, chat.EmptyMessageReply},
	}
	for _, tt := range tests {
		w := postJSON(router, "/api/v1/chat", testSecret, `{"message":"`+tt.message+`","user_id":"u1"}`)
		require.Equal(t, http.StatusOK, w.Code, tt.message)

		var resp chatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tt.wantSource.String(), resp.Source, tt.message)
		assert.Contains(t, resp.Reply, tt.wantReply, tt.message)
	}
}

func TestAnswer_RateLimited(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{Name: "answer", RequestsPerSecond: 0.001, Burst: 2})
	defer limiter.Stop()
	router, answerer, _ := newTestRouter(t, func(c *RouterConfig) { c.Limiter = limiter })

	for range 2 {
		w := postJSON(router, "/answer", testSecret, `{"text":"merhaba"}`, HeaderUserID, "u1")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := postJSON(router, "/answer", testSecret, `{"text":"merhaba"}`, HeaderUserID, "u1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = postJSON(router, "/answer", testSecret, `{"text":"merhaba"}`, HeaderUserID, "u2")
	assert.Equal(t, http.StatusOK, w.Code, "callers have separate buckets")
	assert.Equal(t, int32(3), answerer.calls.Load())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	m.RecordIntent(intent.Dining.String(), config.PolicyRegex)

	router, _, _ := newTestRouter(t, func(c *RouterConfig) {
		c.Registry = registry
		c.MetricsUsername = "prometheus"
		c.MetricsPassword = "pw"
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prometheus", "pw")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatbot_intent_total")
}

func TestWebhookMountedOnlyWhenConfigured(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t, nil)
	w := postJSON(router, "/webhook", "", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	router, _, _ = newTestRouter(t, func(c *RouterConfig) {
		c.Webhook = func(c *gin.Context) { c.Status(http.StatusOK) }
	})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(nil))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	router, _, _ := newTestRouter(t, func(c *RouterConfig) {
		c.CORSOrigins = []string{"https://cse.akdeniz.edu.tr"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/answer", nil)
	req.Header.Set("Origin", "https://cse.akdeniz.edu.tr")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", HeaderAuth)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://cse.akdeniz.edu.tr", w.Header().Get("Access-Control-Allow-Origin"))
}
