package teams

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `{
  "value": [
    {
      "createdDateTime": "2025-10-20T09:15:42.123Z",
      "from": {"user": {"displayName": "Dr. Ayşe Yılmaz"}},
      "body": {"contentType": "html", "content": "<div><p>Yarın <b>lab</b> yok.</p><p>İyi çalışmalar</p></div>"}
    },
    {
      "createdDateTime": "2025-10-19T08:00:00Z",
      "from": null,
      "body": {"contentType": "text", "content": "Ders notları yüklendi"}
    }
  ]
}`

type graphStub struct {
	server        *httptest.Server
	tokenRequests atomic.Int32
	pageRequests  atomic.Int32
	status        int
}

func newGraphStub(t *testing.T) *graphStub {
	t.Helper()
	g := &graphStub{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		g.tokenRequests.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, graphScope, r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "graph-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /teams/team-1/channels/chan-1/messages", func(w http.ResponseWriter, r *http.Request) {
		g.pageRequests.Add(1)
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		assert.Equal(t, "40", r.URL.Query().Get("$top"))
		if g.status != http.StatusOK {
			http.Error(w, `{"error":{"code":"Forbidden"}}`, g.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePage))
	})
	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *graphStub) client(t *testing.T, ttl time.Duration) *Client {
	t.Helper()
	c, err := New(Options{
		TenantID:     "tenant",
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      g.server.URL,
		TokenURL:     g.server.URL + "/token",
		CacheTTL:     ttl,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestFetchRecentMessages(t *testing.T) {
	t.Parallel()
	g := newGraphStub(t)
	c := g.client(t, 0)

	msgs, err := c.FetchRecentMessages(context.Background(), "team-1", "chan-1", 40)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, Message{
		Author:    "Dr. Ayşe Yılmaz",
		Timestamp: "2025-10-20 09:15:42",
		Text:      "Yarın\nlab\nyok.\nİyi çalışmalar",
	}, msgs[0])
	assert.Equal(t, "hocanız", msgs[1].Author)
	assert.Equal(t, "2025-10-19 08:00:00", msgs[1].Timestamp)
	assert.Equal(t, "Ders notları yüklendi", msgs[1].Text)

	// The token is reused across requests.
	_, err = c.FetchRecentMessages(context.Background(), "team-1", "chan-1", 40)
	require.NoError(t, err)
	assert.Equal(t, int32(1), g.tokenRequests.Load())
	assert.Equal(t, int32(2), g.pageRequests.Load())
}

func TestFetchRecentMessages_Cache(t *testing.T) {
	t.Parallel()
	g := newGraphStub(t)
	c := g.client(t, time.Minute)

	for range 3 {
		_, err := c.FetchRecentMessages(context.Background(), "team-1", "chan-1", 40)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), g.pageRequests.Load())
}

func TestFetchRecentMessages_HTTPError(t *testing.T) {
	t.Parallel()
	g := newGraphStub(t)
	g.status = http.StatusForbidden
	c := g.client(t, time.Minute)

	_, err := c.FetchRecentMessages(context.Background(), "team-1", "chan-1", 40)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	// Failures are not cached.
	_, err = c.FetchRecentMessages(context.Background(), "team-1", "chan-1", 40)
	require.Error(t, err)
	assert.Equal(t, int32(2), g.pageRequests.Load())
}

func TestFetchRecentMessages_ContextCanceled(t *testing.T) {
	t.Parallel()
	g := newGraphStub(t)
	c := g.client(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchRecentMessages(ctx, "team-1", "chan-1", 40)
	assert.Error(t, err)
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := New(Options{TenantID: "t", ClientID: "c"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "Sınav ertelendi", "Sınav ertelendi"},
		{"nested markup", "<p>a<b>b</b>c</p>", "a\nb\nc"},
		{"script dropped", "<div>Duyuru<script>alert(1)</script></div>", "Duyuru"},
		{"entities decoded", "<p>Quiz &amp; Lab</p>", "Quiz & Lab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
