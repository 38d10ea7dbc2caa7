// Package chat composes the reply to one student message: classify, resolve
// context, then either return the context directly or hand it to the
// generator. Every path produces user-facing text.
package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ctxutil"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/genai"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/resolver"
)

// Fixed replies.
const (
	EmptyMessageReply = "Boş bir mesaj geldi. Bir cümle halinde sorunu yaz."
	HelpReply         = `Tam anlayamadım. Örnek: "Yarın Algoritma dersi var mı?" veya "Bugünkü yemekhane menüsü nedir?"`
	ApologyReply      = "Üzgünüm, şu anda yanıt üretemiyorum."
)

const (
	// SystemInstruction is sent with every generation request.
	SystemInstruction = "You are a helpful assistant for Akdeniz University Computer Engineering students. Answer in Turkish. Be concise and friendly."

	// GeneralContext stands in for retrieved context on catch-all intents.
	GeneralContext = "General conversation. Feel free to ask anything about Akdeniz University or Computer Engineering."
)

// Outcome labels how a reply was produced.
const (
	OutcomeEmpty     = "empty"
	OutcomeDirect    = "direct"
	OutcomeHelp      = "help"
	OutcomeContext   = "context"
	OutcomeGenerated = "generated"
	OutcomeApology   = "apology"
)

// ContextResolver turns an intent into context.
type ContextResolver interface {
	Resolve(ctx context.Context, in intent.Intent) resolver.Payload
}

// Recorder receives per-request observations.
type Recorder interface {
	RecordIntent(intent, policy string)
	RecordAnswer(intent, outcome string, duration float64)
}

// Request is one inbound message.
type Request struct {
	Text    string
	User    string
	ChatID  string
	IsGroup bool
}

// Reply is the composed answer.
type Reply struct {
	Text    string
	Intent  intent.Intent
	Outcome string
}

// Options configures a Composer. Generator may be nil.
type Options struct {
	Classifier        intent.Classifier
	Resolver          ContextResolver
	Generator         genai.Generator
	SharedSecret      string
	GenerationTimeout time.Duration
	Recorder          Recorder
	Logger            *logger.Logger
	// ReportError forwards generation failures to error tracking.
	ReportError func(ctx context.Context, err error)
}

// Composer is safe for concurrent use; it holds no per-request state.
type Composer struct {
	classifier intent.Classifier
	resolver   ContextResolver
	gen        genai.Generator
	secret     []byte
	genTimeout time.Duration
	recorder   Recorder
	log        *logger.Logger
	report     func(ctx context.Context, err error)
}

// New validates opts and builds a Composer.
func New(opts Options) (*Composer, error) {
	if opts.Classifier == nil {
		return nil, errors.New("chat: classifier is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("chat: resolver is required")
	}
	c := &Composer{
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		gen:        opts.Generator,
		secret:     []byte(opts.SharedSecret),
		genTimeout: opts.GenerationTimeout,
		recorder:   opts.Recorder,
		log:        opts.Logger,
		report:     opts.ReportError,
	}
	if c.genTimeout <= 0 {
		c.genTimeout = config.Generation
	}
	if c.log == nil {
		c.log = logger.NewWithWriter("error", io.Discard)
	}
	c.log = c.log.WithModule("chat")
	return c, nil
}

// HasGenerator reports whether replies are rephrased by an LLM.
func (c *Composer) HasGenerator() bool {
	return c.gen != nil
}

// Authorize compares credential with the shared secret in constant time. An
// empty configured secret rejects everything.
func (c *Composer) Authorize(credential string) bool {
	if len(c.secret) == 0 || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), c.secret) == 1
}

// AnswerAuthorized answers req only when credential matches the shared secret.
// Otherwise it returns apperrors.ErrUnauthenticated without doing any work.
func (c *Composer) AnswerAuthorized(ctx context.Context, credential string, req Request) (Reply, error) {
	if !c.Authorize(credential) {
		return Reply{}, apperrors.ErrUnauthenticated
	}
	return c.Answer(ctx, req), nil
}

// Answer composes a reply. It always returns text.
func (c *Composer) Answer(ctx context.Context, req Request) Reply {
	start := time.Now()
	ctx = withRequestTracing(ctx, req)

	text := strings.TrimSpace(req.Text)
	if text == "" {
		// Empty input maps to the active policy's catch-all.
		reply := Reply{Text: EmptyMessageReply, Intent: c.classifier.Classify(""), Outcome: OutcomeEmpty}
		c.observe(reply, start)
		return reply
	}

	in := c.classifier.Classify(text)
	if c.recorder != nil {
		c.recorder.RecordIntent(in.Name.String(), c.classifier.Policy())
	}

	payload := c.resolver.Resolve(ctx, in)
	reply := c.compose(ctx, text, in, payload)
	c.observe(reply, start)

	c.log.DebugContext(ctx, "answered",
		"intent", in.Name,
		"slots", in.Slots(),
		"found", payload.Found,
		"outcome", reply.Outcome,
		"duration_ms", time.Since(start).Milliseconds())
	return reply
}

func (c *Composer) compose(ctx context.Context, query string, in intent.Intent, payload resolver.Payload) Reply {
	reply := Reply{Intent: in}

	if payload.Direct {
		reply.Text, reply.Outcome = payload.Text, OutcomeDirect
		return reply
	}

	if c.gen == nil {
		if in.Name.IsCatchAll() || strings.TrimSpace(payload.Text) == "" {
			reply.Text, reply.Outcome = HelpReply, OutcomeHelp
			return reply
		}
		reply.Text, reply.Outcome = payload.Text, OutcomeContext
		return reply
	}

	contextText := payload.Text
	if in.Name.IsCatchAll() {
		contextText = GeneralContext
	}

	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	out, err := c.gen.Generate(genCtx, genai.Prompt{
		SystemInstruction: SystemInstruction,
		Context:           contextText,
		Query:             query,
	})
	if err == nil {
		out = strings.TrimSpace(out)
		if out == "" {
			err = genai.ErrEmptyReply
		}
	}
	if err != nil {
		err = apperrors.NewCollaboratorError("generation", "generate", err)
		c.log.WithError(err).WarnContext(ctx, "generation failed", "intent", in.Name)
		if c.report != nil {
			c.report(ctx, fmt.Errorf("chat reply for %s: %w", in.Name, err))
		}
		reply.Text, reply.Outcome = ApologyReply, OutcomeApology
		return reply
	}

	reply.Text, reply.Outcome = out, OutcomeGenerated
	return reply
}

func (c *Composer) observe(reply Reply, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordAnswer(reply.Intent.Name.String(), reply.Outcome, time.Since(start).Seconds())
	}
}

func withRequestTracing(ctx context.Context, req Request) context.Context {
	if req.User != "" {
		ctx = ctxutil.WithUserID(ctx, req.User)
	}
	if req.ChatID != "" {
		ctx = ctxutil.WithChatID(ctx, req.ChatID)
	}
	if req.IsGroup {
		ctx = ctxutil.WithIsGroup(ctx, true)
	}
	return ctx
}
