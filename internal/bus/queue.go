package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/persona-dev/personad/internal/logger"
)

var (
	ErrQueueFull      = errors.New("queue is full")
	ErrAlreadyStarted = errors.New("message bus is already started")
	ErrNotStarted     = errors.New("message bus is not started")
)

// MessageBus is an in-process fan-out queue for inbound and outbound
// messages. Publishing never blocks; a full queue rejects the message with
// ErrQueueFull and the transport decides what to tell the user.
type MessageBus struct {
	mu      sync.RWMutex
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	inboundCh  chan InboundMessage
	outboundCh chan OutboundMessage

	inboundSubscribers  map[int64]chan InboundMessage
	outboundSubscribers map[int64]chan OutboundMessage
	subscriberID        int64
}

// New creates a MessageBus with the given capacity for both queues.
func New(capacity int, log *logger.Logger) *MessageBus {
	return &MessageBus{
		logger:              log,
		inboundCh:           make(chan InboundMessage, capacity),
		outboundCh:          make(chan OutboundMessage, capacity),
		inboundSubscribers:  make(map[int64]chan InboundMessage),
		outboundSubscribers: make(map[int64]chan OutboundMessage),
	}
}

// Start launches the distribution goroutines.
func (mb *MessageBus) Start(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.started {
		return ErrAlreadyStarted
	}

	mb.ctx, mb.cancel = context.WithCancel(ctx)
	mb.started = true

	go mb.distributeInbound()
	go mb.distributeOutbound()

	mb.logger.Info("message bus started", logger.Field{Key: "capacity", Value: cap(mb.inboundCh)})
	return nil
}

// Stop cancels distribution and closes all channels.
func (mb *MessageBus) Stop() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if !mb.started {
		return ErrNotStarted
	}

	if mb.cancel != nil {
		mb.cancel()
	}

	for id, ch := range mb.inboundSubscribers {
		close(ch)
		delete(mb.inboundSubscribers, id)
	}
	for id, ch := range mb.outboundSubscribers {
		close(ch)
		delete(mb.outboundSubscribers, id)
	}

	close(mb.inboundCh)
	close(mb.outboundCh)
	mb.started = false

	mb.logger.Info("message bus stopped")
	return nil
}

// PublishInbound enqueues a message from an external transport.
func (mb *MessageBus) PublishInbound(msg InboundMessage) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if !mb.started {
		return ErrNotStarted
	}

	select {
	case mb.inboundCh <- msg:
		mb.logger.DebugCtx(mb.ctx, "inbound message published",
			logger.Field{Key: "agent_id", Value: msg.AgentID},
			logger.Field{Key: "user_id", Value: msg.UserID})
		return nil
	default:
		mb.logger.WarnCtx(mb.ctx, "inbound queue full",
			logger.Field{Key: "capacity", Value: cap(mb.inboundCh)})
		return ErrQueueFull
	}
}

// PublishOutbound enqueues a reply for delivery.
func (mb *MessageBus) PublishOutbound(msg OutboundMessage) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if !mb.started {
		return ErrNotStarted
	}

	select {
	case mb.outboundCh <- msg:
		mb.logger.DebugCtx(mb.ctx, "outbound message published",
			logger.Field{Key: "agent_id", Value: msg.AgentID},
			logger.Field{Key: "user_id", Value: msg.UserID})
		return nil
	default:
		mb.logger.WarnCtx(mb.ctx, "outbound queue full",
			logger.Field{Key: "capacity", Value: cap(mb.outboundCh)})
		return ErrQueueFull
	}
}

// SubscribeInbound registers a consumer of inbound messages. Returns nil if
// the bus is not started.
func (mb *MessageBus) SubscribeInbound(ctx context.Context) <-chan InboundMessage {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if !mb.started {
		return nil
	}

	ch := make(chan InboundMessage, 10)
	mb.subscriberID++
	mb.inboundSubscribers[mb.subscriberID] = ch

	mb.logger.DebugCtx(ctx, "inbound subscriber added",
		logger.Field{Key: "subscriber_id", Value: mb.subscriberID})
	return ch
}

// SubscribeOutbound registers a consumer of outbound messages. Returns nil
// if the bus is not started.
func (mb *MessageBus) SubscribeOutbound(ctx context.Context) <-chan OutboundMessage {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if !mb.started {
		return nil
	}

	ch := make(chan OutboundMessage, 10)
	mb.subscriberID++
	mb.outboundSubscribers[mb.subscriberID] = ch

	mb.logger.DebugCtx(ctx, "outbound subscriber added",
		logger.Field{Key: "subscriber_id", Value: mb.subscriberID})
	return ch
}

func (mb *MessageBus) distributeInbound() {
	for {
		select {
		case <-mb.ctx.Done():
			return
		case msg, ok := <-mb.inboundCh:
			if !ok {
				return
			}
			mb.mu.RLock()
			for _, ch := range mb.inboundSubscribers {
				select {
				case ch <- msg:
				default:
					mb.logger.Warn("inbound subscriber queue full, dropping message",
						logger.Field{Key: "agent_id", Value: msg.AgentID})
				}
			}
			mb.mu.RUnlock()
		}
	}
}

func (mb *MessageBus) distributeOutbound() {
	for {
		select {
		case <-mb.ctx.Done():
			return
		case msg, ok := <-mb.outboundCh:
			if !ok {
				return
			}
			mb.mu.RLock()
			for _, ch := range mb.outboundSubscribers {
				select {
				case ch <- msg:
				default:
					mb.logger.Warn("outbound subscriber queue full, dropping message",
						logger.Field{Key: "agent_id", Value: msg.AgentID})
				}
			}
			mb.mu.RUnlock()
		}
	}
}
