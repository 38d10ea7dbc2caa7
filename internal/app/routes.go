package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/chat"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ratelimit"
)

// Answerer is the authenticated entry into the chat pipeline.
type Answerer interface {
	Authorize(credential string) bool
	AnswerAuthorized(ctx context.Context, credential string, req chat.Request) (chat.Reply, error)
}

// Pinger reports backend health for /readyz.
type Pinger interface {
	Driver() string
	Ping(ctx context.Context) error
}

// ErrorRecorder counts rejected requests.
type ErrorRecorder interface {
	RecordHTTPError(errorType, module string)
}

// RouterConfig holds everything the HTTP surface needs. Webhook, Registry
// and Status may be nil.
type RouterConfig struct {
	Answerer Answerer
	Storage  Pinger
	Webhook  gin.HandlerFunc
	Registry *prometheus.Registry

	MetricsUsername string
	MetricsPassword string
	CORSOrigins     []string
	Limiter         *ratelimit.KeyedLimiter

	// Status adds fields to the /readyz body, e.g. enabled features.
	Status   func() gin.H
	Recorder ErrorRecorder
	Logger   *logger.Logger
}

type answerRequest struct {
	Text    string `json:"text"`
	User    string `json:"user"`
	ChatID  string `json:"chat_id"`
	IsGroup bool   `json:"is_group"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

type routes struct {
	cfg RouterConfig
	log *logger.Logger
}

// NewRouter builds the Gin engine with middleware and every route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	r := &routes{cfg: cfg, log: log.WithModule("http")}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(r.log))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(securityHeadersMiddleware())

	for _, path := range []string{"/health", "/healthz"} {
		router.GET(path, r.liveness)
		router.HEAD(path, r.liveness)
	}
	router.GET("/readyz", r.readiness)
	router.HEAD("/readyz", r.readiness)

	authed := []gin.HandlerFunc{
		limitBodyMiddleware(maxBodyBytes),
		sharedSecretMiddleware(cfg.Answerer.Authorize),
		rateLimitMiddleware(cfg.Limiter),
	}
	router.POST("/answer", append(authed, r.answer)...)
	router.POST("/api/v1/chat", append(authed, r.chat)...)

	if cfg.Webhook != nil {
		router.POST("/webhook", cfg.Webhook)
	}
	if cfg.Registry != nil {
		router.GET("/metrics",
			metricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword),
			gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}
	return router
}

func (r *routes) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *routes) readiness(c *gin.Context) {
	body := gin.H{}
	if r.cfg.Status != nil {
		body = r.cfg.Status()
	}

	if r.cfg.Storage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
		defer cancel()

		body["storage"] = r.cfg.Storage.Driver()
		if err := r.cfg.Storage.Ping(ctx); err != nil {
			r.log.WithError(err).Warn("Readiness check failed: storage unavailable")
			body["status"] = "not ready"
			body["reason"] = "storage unavailable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}

// answer serves the chat adapter contract: {text, user, chat_id, is_group}
// in, {answer} out.
func (r *routes) answer(c *gin.Context) {
	var req answerRequest
	if !r.bind(c, &req, "answer") {
		return
	}
	reply, ok := r.respond(c, "answer", chat.Request{
		Text:    req.Text,
		User:    req.User,
		ChatID:  req.ChatID,
		IsGroup: req.IsGroup,
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, answerResponse{Answer: reply.Text})
}

// chat serves the web client contract: {message, user_id} in, {reply,
// source} out, where source names the intent that produced the reply.
func (r *routes) chat(c *gin.Context) {
	var req chatRequest
	if !r.bind(c, &req, "chat") {
		return
	}
	reply, ok := r.respond(c, "chat", chat.Request{Text: req.Message, User: req.UserID})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, chatResponse{Reply: reply.Text, Source: reply.Intent.Name.String()})
}

func (r *routes) bind(c *gin.Context, dst any, module string) bool {
	// An empty body is an empty message, which the composer answers.
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		r.recordError("bad_request", module)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (r *routes) respond(c *gin.Context, module string, req chat.Request) (chat.Reply, bool) {
	reply, err := r.cfg.Answerer.AnswerAuthorized(c.Request.Context(), c.GetHeader(HeaderAuth), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthenticated) {
			r.recordError("unauthenticated", module)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return chat.Reply{}, false
		}
		r.recordError("internal", module)
		r.log.WithError(err).ErrorContext(c.Request.Context(), "answer failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return chat.Reply{}, false
	}
	return reply, true
}

func (r *routes) recordError(errorType, module string) {
	if r.cfg.Recorder != nil {
		r.cfg.Recorder.RecordHTTPError(errorType, module)
	}
}
