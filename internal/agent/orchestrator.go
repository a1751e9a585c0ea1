// Package agent runs the bounded tool-calling loop that turns one chat
// message into calendar operations and a reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/llm"
	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/internal/tools"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
	"github.com/capitalize-ai/scheduling-agent/pkg/metrics"
	"github.com/capitalize-ai/scheduling-agent/pkg/tracing"
)

var (
	// ErrToolLimit is returned when the model keeps requesting tools past
	// Config.MaxToolIterations.
	ErrToolLimit = errors.New("tool-call limit")
	// ErrLLMTimeout is returned when a model call exceeds its deadline.
	ErrLLMTimeout = errors.New("llm timeout")
)

const emptyAnswer = "Sorry, I could not come up with a reply. Please try again."

// Config tunes the orchestration loop.
type Config struct {
	Model             string
	MaxTokens         int
	Temperature       float64
	MaxToolIterations int
	HistoryWindow     int
	LLMTimeout        time.Duration
	ChatTimeout       time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         1024,
		MaxToolIterations: 8,
		HistoryWindow:     10,
		LLMTimeout:        30 * time.Second,
		ChatTimeout:       90 * time.Second,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for the system prompt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// Orchestrator drives one chat turn at a time per user.
type Orchestrator struct {
	client   llm.Client
	registry *tools.Registry
	history  bestEffortHistory
	cfg      Config
	locks    *userLocks
	log      *logger.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates an orchestrator. The registry must already hold every tool the
// model may call.
func New(client llm.Client, registry *tools.Registry, history History, cfg Config, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if registry == nil || len(registry.Names()) == 0 {
		return nil, errors.New("at least one tool must be registered")
	}

	defaults := DefaultConfig()
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = defaults.MaxToolIterations
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaults.HistoryWindow
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}

	o := &Orchestrator{
		client:   client,
		registry: registry,
		cfg:      cfg,
		locks:    newUserLocks(),
		log:      logger.Global(),
		tracer:   tracing.Tracer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.history = bestEffortHistory{inner: history, log: o.log}
	return o, nil
}

// Chat handles one user message and returns the reply. Failures are reported
// as a "System Error: ..." reply; nothing is propagated to the caller.
func (o *Orchestrator) Chat(ctx context.Context, userID, message string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if o.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ChatTimeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "agent.chat", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("timezone", loc.String()),
	))
	defer span.End()

	log := o.log.With(zap.String("user_id", userID))

	unlock, err := o.locks.acquire(ctx, userID)
	if err != nil {
		return o.fail(span, log, fmt.Errorf("waiting for the previous message: %w", err))
	}
	defer unlock()

	window := o.history.recent(ctx, userID, o.cfg.HistoryWindow)
	o.history.append(ctx, userID, model.RoleUser, message)

	sess := tools.Session{UserID: userID, Location: loc}
	answer, err := o.run(ctx, log, sess, window, message)
	if err != nil {
		return o.fail(span, log, err)
	}

	o.history.append(ctx, userID, model.RoleModel, answer)
	metrics.ChatTurnsTotal.WithLabelValues("ok").Inc()
	return answer
}

func (o *Orchestrator) run(ctx context.Context, log *logger.Logger, sess tools.Session, window []model.ChatTurn, message string) (string, error) {
	req := &llm.ChatRequest{
		Model:       o.cfg.Model,
		System:      systemPrompt(o.now(), sess.Location),
		Messages:    append(historyMessages(window), llm.Message{Role: llm.RoleUser, Content: message}),
		Tools:       o.registry.Definitions(),
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}

	for i := 1; i <= o.cfg.MaxToolIterations; i++ {
		resp, err := o.callModel(ctx, req)
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			metrics.AgentIterations.Observe(float64(i))
			if resp.Content == "" {
				return emptyAnswer, nil
			}
			return resp.Content, nil
		}

		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := o.dispatch(ctx, log, sess, call)
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	metrics.AgentIterations.Observe(float64(o.cfg.MaxToolIterations))
	return "", fmt.Errorf("%w of %d iterations exceeded", ErrToolLimit, o.cfg.MaxToolIterations)
}

func (o *Orchestrator) callModel(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if o.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.LLMTimeout)
		defer cancel()
	}

	resp, err := o.client.Chat(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty response from model")
	}
	return resp, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, log *logger.Logger, sess tools.Session, call llm.ToolCall) string {
	ctx, span := o.tracer.Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	result, err := o.registry.Dispatch(ctx, sess, tools.Call{ID: call.ID, Name: call.Name, Arguments: call.Arguments})
	status := "ok"
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		status = "unknown"
	case err != nil:
		status = "error"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("tool call failed", zap.String("tool", call.Name), zap.Error(err))
	} else {
		log.Debug("tool call", zap.String("tool", call.Name), zap.String("result", result))
	}
	metrics.RecordToolCall(call.Name, status)
	return result
}

func (o *Orchestrator) fail(span trace.Span, log *logger.Logger, err error) string {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error("chat turn failed", zap.Error(err))
	metrics.ChatTurnsTotal.WithLabelValues("error").Inc()
	return systemError(err)
}

func systemError(err error) string {
	if errors.Is(err, ErrLLMTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "System Error: the assistant timed out, please retry."
	}
	return "System Error: " + err.Error()
}

// historyMessages converts stored turns to model messages, dropping leading
// model turns so the conversation opens with the user.
func historyMessages(window []model.ChatTurn) []llm.Message {
	msgs := make([]llm.Message, 0, len(window)+1)
	for _, turn := range window {
		role := llm.RoleUser
		if turn.Role == model.RoleModel {
			if len(msgs) == 0 {
				continue
			}
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Content})
	}
	return msgs
}
