// Package chat is the conversation layer: it consumes inbound messages from
// the bus, consults the schedule engine for the agent's availability, and
// produces either a normal persona reply or an in-character busy reply.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/persona-dev/personad/internal/agent"
	"github.com/persona-dev/personad/internal/bus"
	"github.com/persona-dev/personad/internal/llm"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/schedule"
)

const (
	replyTemperature = 0.8
	replyMaxTokens   = 1024
)

// Responder turns inbound messages into replies, gated on the schedule.
type Responder struct {
	directory *agent.Directory
	scheduler *schedule.Service
	provider  llm.Provider
	bus       *bus.MessageBus
	logger    *logger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewResponder creates a responder.
func NewResponder(directory *agent.Directory, scheduler *schedule.Service, provider llm.Provider, mb *bus.MessageBus, log *logger.Logger) *Responder {
	return &Responder{
		directory: directory,
		scheduler: scheduler,
		provider:  provider,
		bus:       mb,
		logger:    log,
	}
}

// Start subscribes to the inbound queue and begins answering.
func (r *Responder) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	inbound := r.bus.SubscribeInbound(runCtx)
	if inbound == nil {
		cancel()
		return fmt.Errorf("message bus is not started")
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				r.handle(runCtx, msg)
			}
		}
	}()

	r.logger.Info("chat responder started")
	return nil
}

// Stop cancels the consumer loop and waits for in-flight replies.
func (r *Responder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("chat responder stopped")
}

func (r *Responder) handle(ctx context.Context, msg bus.InboundMessage) {
	content, err := r.Respond(ctx, msg)
	if err != nil {
		r.logger.ErrorCtx(ctx, "Failed to produce reply", err,
			logger.Field{Key: "agent_id", Value: msg.AgentID},
			logger.Field{Key: "user_id", Value: msg.UserID})
		return
	}

	out := bus.NewOutboundMessage(&msg, content)
	if err := r.bus.PublishOutbound(*out); err != nil {
		r.logger.ErrorCtx(ctx, "Failed to publish reply", err,
			logger.Field{Key: "agent_id", Value: msg.AgentID})
	}
}

// Respond produces the reply text for one inbound message. Unreachable
// agents answer with a busy reply unless the caller forces the
// conversation, in which case a temporary available override is installed
// and a normal reply follows.
func (r *Responder) Respond(ctx context.Context, msg bus.InboundMessage) (string, error) {
	profile, err := r.directory.Get(msg.AgentID)
	if err != nil {
		return "", err
	}

	medium := msg.Medium
	if medium == "" {
		medium = schedule.ChannelChat
	}

	sc, err := r.scheduler.GetCurrentStatusContext(msg.AgentID, medium)
	if err != nil {
		return "", err
	}

	if !sc.Available {
		if !msg.ForceGenerate {
			return r.statusReply(ctx, profile, sc, msg.Content)
		}

		if _, err := r.scheduler.ForceAvailable(ctx, msg.AgentID); err != nil {
			r.logger.WarnCtx(ctx, "Force-available failed, replying anyway",
				logger.Field{Key: "agent_id", Value: msg.AgentID},
				logger.Field{Key: "error", Value: err})
		} else if sc, err = r.scheduler.GetCurrentStatusContext(msg.AgentID, medium); err != nil {
			return "", err
		}
	}

	return r.normalReply(ctx, profile, sc, msg.Content)
}

func (r *Responder) normalReply(ctx context.Context, profile *agent.Profile, sc schedule.StatusContext, userMessage string) (string, error) {
	return r.complete(ctx, profile, BuildPersonaPrompt(profile, sc), userMessage)
}

func (r *Responder) statusReply(ctx context.Context, profile *agent.Profile, sc schedule.StatusContext, userMessage string) (string, error) {
	return r.complete(ctx, profile, BuildStatusPrompt(profile, sc), userMessage)
}

func (r *Responder) complete(ctx context.Context, profile *agent.Profile, system, user string) (string, error) {
	resp, err := r.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Model:       profile.Model,
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
		Format:      llm.ResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("reply generation failed: %w", err)
	}
	return resp.Content, nil
}
