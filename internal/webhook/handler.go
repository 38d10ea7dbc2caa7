// Package webhook delivers chat replies over the LINE Messaging API. Text
// messages are routed to the chat composer; follow and join events get the
// welcome text.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"golang.org/x/time/rate"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/chat"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ctxutil"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ratelimit"
)

// LINE API constraints.
const (
	maxEventsPerWebhook = 100
	minReplyTokenLength = 10
	maxReplyRunes       = 5000
	defaultGlobalRPS    = 100
)

// Fixed replies.
const (
	WelcomeReply = "Merhaba! Akdeniz Üniversitesi Bilgisayar Mühendisliği asistanıyım. " +
		`Yemekhane menüsünü, bölüm duyurularını ve ders Teams duyurularını sorabilirsin. Örnek: "Bugünkü yemekhane menüsü nedir?"`
	RateLimitedReply = "Çok hızlı mesaj gönderiyorsun. Biraz bekleyip tekrar dene."
)

// Answerer composes the reply to one message.
type Answerer interface {
	Answer(ctx context.Context, req chat.Request) chat.Reply
}

// Recorder receives webhook observations.
type Recorder interface {
	RecordWebhook(eventType, status string, duration float64)
	RecordRateLimiterDrop(surface string)
}

// Config configures a Handler.
type Config struct {
	ChannelSecret string
	Messenger     Messenger
	Answerer      Answerer

	// UserLimiter throttles each LINE user; nil disables per-user limits.
	UserLimiter *ratelimit.KeyedLimiter

	// GlobalRPS caps outgoing LINE API calls; zero means 100.
	GlobalRPS float64

	// ProcessTimeout bounds answering one event; zero means
	// config.LineReplyProcessing.
	ProcessTimeout time.Duration

	Recorder Recorder
	Logger   *logger.Logger
}

// Handler handles LINE webhook callbacks.
type Handler struct {
	channelSecret string
	messenger     Messenger
	answerer      Answerer
	userLimiter   *ratelimit.KeyedLimiter
	global        *rate.Limiter
	timeout       time.Duration
	recorder      Recorder
	logger        *logger.Logger
	wg            sync.WaitGroup
}

// NewHandler validates cfg and builds a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.ChannelSecret == "" {
		return nil, errors.New("webhook: channel secret is required")
	}
	if cfg.Messenger == nil {
		return nil, errors.New("webhook: messenger is required")
	}
	if cfg.Answerer == nil {
		return nil, errors.New("webhook: answerer is required")
	}

	rps := cfg.GlobalRPS
	if rps <= 0 {
		rps = defaultGlobalRPS
	}
	timeout := cfg.ProcessTimeout
	if timeout <= 0 {
		timeout = config.LineReplyProcessing
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}

	return &Handler{
		channelSecret: cfg.ChannelSecret,
		messenger:     cfg.Messenger,
		answerer:      cfg.Answerer,
		userLimiter:   cfg.UserLimiter,
		global:        rate.NewLimiter(rate.Limit(rps), int(rps)),
		timeout:       timeout,
		recorder:      cfg.Recorder,
		logger:        log.WithModule("webhook"),
	}, nil
}

// Handle is the Gin handler for the webhook endpoint. The signature check
// authenticates the request; a valid callback gets 200 at once and its events
// are answered in the background.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.WarnContext(c.Request.Context(), "Invalid webhook signature")
			h.record("batch", "invalid_signature", 0)
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).ErrorContext(c.Request.Context(), "Failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)
	h.record("batch", "received", 0)

	events := cb.Events
	if len(events) > maxEventsPerWebhook {
		h.logger.WithField("event_count", len(events)).Warn("Too many events in webhook batch; truncating")
		events = events[:maxEventsPerWebhook]
	}
	events = append([]webhook.EventInterface(nil), events...)

	base := ctxutil.PreserveTracing(c.Request.Context())
	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async event processing")
			}
		}()
		for _, event := range events {
			h.processEvent(base, event)
		}
	})
}

func (h *Handler) processEvent(ctx context.Context, event webhook.EventInterface) {
	start := time.Now()

	eventID, isRedelivery := eventMeta(event)
	log := h.logger
	if eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, eventID)
		log = log.WithRequestID(eventID)
	}
	if isRedelivery {
		log = log.WithField("is_redelivery", true)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		eventType  string
		replyToken string
		text       string
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType, replyToken = "message", e.ReplyToken
		text = h.handleMessage(ctx, e)
	case webhook.FollowEvent:
		eventType, replyToken, text = "follow", e.ReplyToken, WelcomeReply
	case webhook.JoinEvent:
		eventType, replyToken, text = "join", e.ReplyToken, WelcomeReply
	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("Unsupported event type")
		return
	}

	if text == "" {
		h.record(eventType, "ignored", time.Since(start).Seconds())
		return
	}
	if len(replyToken) < minReplyTokenLength {
		log.WithField("token_length", len(replyToken)).Debug("Invalid reply token format")
		h.record(eventType, "no_reply_token", time.Since(start).Seconds())
		return
	}

	if err := h.global.Wait(ctx); err != nil {
		log.WithError(err).Warn("Global rate limit wait abandoned")
		h.dropped("global")
		h.record(eventType, "rate_limited", time.Since(start).Seconds())
		return
	}

	if err := h.messenger.Reply(replyToken, truncate(text, maxReplyRunes)); err != nil {
		if strings.Contains(err.Error(), "Invalid reply token") {
			log.WithError(err).Debug("Reply token already used or invalid")
		} else {
			log.WithError(err).Error("Failed to send reply")
		}
		h.record(eventType, "reply_error", time.Since(start).Seconds())
		return
	}

	h.record(eventType, "success", time.Since(start).Seconds())
	log.WithField("event_type", eventType).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Event processed")
}

// handleMessage returns the reply text for a message event, or "" when the
// event gets no reply: non-text content, group messages that do not mention
// the bot, and throttled group users.
func (h *Handler) handleMessage(ctx context.Context, e webhook.MessageEvent) string {
	textMsg, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		return ""
	}

	personal := isPersonalChat(e.Source)
	text := textMsg.Text
	if !personal {
		if !isBotMentioned(textMsg) {
			return ""
		}
		text = removeBotMentions(text, textMsg.Mention)
	}

	userID := getUserID(e.Source)
	chatID := getChatID(e.Source)
	if h.userLimiter != nil && !h.userLimiter.Allow(userID) {
		if personal {
			return RateLimitedReply
		}
		return ""
	}

	if personal && chatID != "" {
		if err := h.messenger.ShowLoading(chatID); err != nil {
			h.logger.WithError(err).Warn("Failed to show loading animation")
		}
	}

	reply := h.answerer.Answer(ctx, chat.Request{
		Text:    text,
		User:    userID,
		ChatID:  chatID,
		IsGroup: !personal,
	})
	return reply.Text
}

func (h *Handler) record(eventType, status string, duration float64) {
	if h.recorder != nil {
		h.recorder.RecordWebhook(eventType, status, duration)
	}
}

func (h *Handler) dropped(surface string) {
	if h.recorder != nil {
		h.recorder.RecordRateLimiterDrop(surface)
	}
}

// Shutdown waits for in-flight events. It returns ctx.Err() if ctx ends
// first.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func eventMeta(event webhook.EventInterface) (string, bool) {
	var (
		id  string
		dlv *webhook.DeliveryContext
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		id, dlv = e.WebhookEventId, e.DeliveryContext
	case webhook.FollowEvent:
		id, dlv = e.WebhookEventId, e.DeliveryContext
	case webhook.JoinEvent:
		id, dlv = e.WebhookEventId, e.DeliveryContext
	}
	return id, dlv != nil && dlv.IsRedelivery
}

func getChatID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}

func getUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

func isPersonalChat(source webhook.SourceInterface) bool {
	_, ok := source.(webhook.UserSource)
	return ok
}

// truncate cuts s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
