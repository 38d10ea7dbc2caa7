// Package teams reads course channel messages from Microsoft Teams through
// the Microsoft Graph API using the client-credentials flow.
package teams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope     = "https://graph.microsoft.com/.default"
	defaultAuthor  = "hocanız"
	cacheSize      = 128
)

// ErrNotConfigured is returned when Azure credentials are missing.
var ErrNotConfigured = errors.New("graph creds missing: set AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET")

// Message is a channel post reduced to what the chatbot shows.
type Message struct {
	Author    string
	Timestamp string // "YYYY-MM-DD HH:MM:SS" as posted, without zone
	Text      string
}

// Options configures a Client.
type Options struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// BaseURL and TokenURL override the Graph and login endpoints (tests).
	BaseURL  string
	TokenURL string

	// CacheTTL keeps fetched pages for a short time; zero disables caching.
	CacheTTL time.Duration
	// Timeout bounds each HTTP exchange, token requests included.
	Timeout time.Duration
}

// Client fetches channel messages. Tokens are cached and refreshed by the
// oauth2 transport. Safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	cache   *expirable.LRU[string, []Message]
}

// New creates a Graph client. It returns ErrNotConfigured when any
// credential is empty.
func New(opts Options) (*Client, error) {
	if opts.TenantID == "" || opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, ErrNotConfigured
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(opts.TenantID) + "/oauth2/v2.0/token"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// The token source uses this client for token requests.
	base := &http.Client{Timeout: opts.Timeout}
	httpClient := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	httpClient.Timeout = opts.Timeout

	c := &Client{http: httpClient, baseURL: baseURL}
	if opts.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []Message](cacheSize, nil, opts.CacheTTL)
	}
	return c, nil
}

type graphMessage struct {
	CreatedDateTime string `json:"createdDateTime"`
	From            *struct {
		User *struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphPage struct {
	Value []graphMessage `json:"value"`
}

// FetchRecentMessages returns up to top messages of a channel, newest first.
func (c *Client) FetchRecentMessages(ctx context.Context, teamID, channelID string, top int) ([]Message, error) {
	key := teamID + "/" + channelID + "/" + strconv.Itoa(top)
	if c.cache != nil {
		if msgs, ok := c.cache.Get(key); ok {
			return msgs, nil
		}
	}

	endpoint := fmt.Sprintf("%s/teams/%s/channels/%s/messages?$top=%d",
		c.baseURL, url.PathEscape(teamID), url.PathEscape(channelID), top)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("graph: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var page graphPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}

	msgs := make([]Message, 0, len(page.Value))
	for _, m := range page.Value {
		msgs = append(msgs, toMessage(m))
	}
	if c.cache != nil {
		c.cache.Add(key, msgs)
	}
	return msgs, nil
}

func toMessage(m graphMessage) Message {
	author := defaultAuthor
	if m.From != nil && m.From.User != nil && m.From.User.DisplayName != "" {
		author = m.From.User.DisplayName
	}
	ts := m.CreatedDateTime
	if len(ts) > 19 {
		ts = ts[:19]
	}
	return Message{
		Author:    author,
		Timestamp: strings.Replace(ts, "T", " ", 1),
		Text:      HTMLToText(m.Body.Content),
	}
}
