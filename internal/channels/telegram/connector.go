// Package telegram bridges Telegram chats and the message bus. Inbound
// text messages are published to the bus addressed to the configured
// default agent; outbound replies are delivered back to the originating
// chat.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/persona-dev/personad/internal/bus"
	"github.com/persona-dev/personad/internal/config"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/schedule"
)

// forceCommand requests a conversation despite the agent being scheduled
// unavailable.
const forceCommand = "/force"

// Connector runs the Telegram side of the bridge.
type Connector struct {
	cfg    config.TelegramConfig
	bus    *bus.MessageBus
	logger *logger.Logger

	bot    *telego.Bot
	ctx    context.Context
	cancel context.CancelFunc

	outboundCh <-chan bus.OutboundMessage
}

// NewConnector creates a Telegram connector.
func NewConnector(cfg config.TelegramConfig, mb *bus.MessageBus, log *logger.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		bus:    mb,
		logger: log,
	}
}

// Start initializes the bot and begins long polling. Disabled connectors
// start as a no-op.
func (c *Connector) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.logger.Info("telegram connector disabled in config")
		return nil
	}
	if c.cfg.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	bot, err := telego.NewBot(c.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	c.bot = bot
	c.ctx, c.cancel = context.WithCancel(ctx)

	botUser, err := c.bot.GetMe(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	c.logger.Info("telegram bot initialized",
		logger.Field{Key: "bot_id", Value: botUser.ID},
		logger.Field{Key: "username", Value: botUser.Username})

	c.outboundCh = c.bus.SubscribeOutbound(c.ctx)
	go c.handleOutbound()
	go c.longPoll()

	return nil
}

// Stop cancels long polling and outbound delivery.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("telegram connector stopped")
	return nil
}

func (c *Connector) longPoll() {
	updates, err := c.bot.UpdatesViaLongPolling(c.ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		c.logger.ErrorCtx(c.ctx, "failed to start long polling", err)
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("telegram long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.handleUpdate(update)
		}
	}
}

func (c *Connector) handleUpdate(update telego.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message

	userID := ""
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}
	if !c.userAllowed(userID) {
		c.logger.WarnCtx(c.ctx, "message from disallowed user ignored",
			logger.Field{Key: "user_id", Value: userID})
		return
	}

	text := msg.Text
	force := false
	if strings.HasPrefix(text, forceCommand) {
		force = true
		text = strings.TrimSpace(strings.TrimPrefix(text, forceCommand))
		if text == "" {
			return
		}
	}

	inbound := bus.NewInboundMessage(
		bus.TransportTelegram,
		c.cfg.DefaultAgent,
		userID,
		strconv.FormatInt(msg.Chat.ID, 10),
		text,
		schedule.ChannelChat,
	)
	inbound.ForceGenerate = force

	if err := c.bus.PublishInbound(*inbound); err != nil {
		c.logger.ErrorCtx(c.ctx, "failed to publish inbound message", err,
			logger.Field{Key: "chat_id", Value: msg.Chat.ID})
	}
}

func (c *Connector) handleOutbound() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.outboundCh:
			if !ok {
				return
			}
			if msg.Transport != bus.TransportTelegram {
				continue
			}
			c.send(msg)
		}
	}
}

func (c *Connector) send(msg bus.OutboundMessage) {
	chatID, err := strconv.ParseInt(msg.SessionID, 10, 64)
	if err != nil {
		c.logger.ErrorCtx(c.ctx, "outbound message has invalid chat id", err,
			logger.Field{Key: "session_id", Value: msg.SessionID})
		return
	}

	timeout := time.Duration(c.cfg.SendTimeoutSeconds) * time.Second
	sendCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	_, err = c.bot.SendMessage(sendCtx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   msg.Content,
	})
	if err != nil {
		c.logger.ErrorCtx(c.ctx, "failed to send telegram message", err,
			logger.Field{Key: "chat_id", Value: chatID})
	}
}

func (c *Connector) userAllowed(userID string) bool {
	if len(c.cfg.AllowedUsers) == 0 {
		return true
	}
	for _, allowed := range c.cfg.AllowedUsers {
		if allowed == userID {
			return true
		}
	}
	return false
}
