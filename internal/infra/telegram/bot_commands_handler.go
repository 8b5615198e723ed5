// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"time"

	"daily_video_bot/internal/domain/subscriber"
	idb "daily_video_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Subscriptions is what the command layer needs from app.DeliveryService.
type Subscriptions interface {
	Register(ctx context.Context, chatID int64, now time.Time) error
	Unregister(ctx context.Context, chatID int64) error
	Status(ctx context.Context, chatID int64) (*subscriber.Status, error)
	Interval() time.Duration
}

// Handler is anything telebot can route a command to.
type Handler interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
}

type commandHandlers struct {
	ctx    context.Context
	subs   Subscriptions
	logger *logrus.Entry
	now    func() time.Time
}

func RegisterBotCommands(
	ctx context.Context,
	b Handler,
	subs Subscriptions,
	baseLogger *logrus.Entry, // For contextual logging
) {
	h := &commandHandlers{
		ctx:    ctx,
		subs:   subs,
		logger: baseLogger.WithField("handler_group", "subscription"),
		now:    time.Now,
	}

	b.Handle("/start", h.start)
	b.Handle("/stop", h.stop)
	b.Handle("/status", h.status)
	b.Handle("/help", h.help)
	b.Handle(telebot.OnVideo, h.echoVideo)
}

func (h *commandHandlers) commandLogger(c telebot.Context, command string) *logrus.Entry {
	fields := logrus.Fields{"command": command}
	if c.Chat() != nil {
		fields["chat_id"] = c.Chat().ID
	}
	if c.Sender() != nil {
		fields["sender_id"] = c.Sender().ID
	}
	return h.logger.WithFields(fields)
}

func (h *commandHandlers) start(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/start")
	logCtx.Info("Processing /start command")

	if err := h.subs.Register(h.ctx, c.Chat().ID, h.now()); err != nil {
		logCtx.WithError(err).Error("Failed to register subscriber")
		return c.Send(genericErrorMessage)
	}

	var firstName string
	if c.Sender() != nil {
		firstName = c.Sender().FirstName
	}
	return c.Send(greetingMessage(firstName, h.subs.Interval()))
}

func (h *commandHandlers) stop(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/stop")
	logCtx.Info("Processing /stop command")

	if err := h.subs.Unregister(h.ctx, c.Chat().ID); err != nil {
		logCtx.WithError(err).Error("Failed to unregister subscriber")
		return c.Send(genericErrorMessage)
	}
	return c.Send(stoppedMessage)
}

func (h *commandHandlers) status(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/status")

	st, err := h.subs.Status(h.ctx, c.Chat().ID)
	if errors.Is(err, idb.ErrSubscriberNotFound) {
		logCtx.Info("Status requested by a non-subscriber")
		return c.Send(notSubscribedMessage)
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to load subscriber status")
		return c.Send(genericErrorMessage)
	}
	return c.Send(statusMessage(st), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
}

func (h *commandHandlers) help(c telebot.Context) error {
	h.commandLogger(c, "/help").Info("Processing /help command")
	return c.Send(helpMessage(h.subs.Interval()))
}

// echoVideo replies with the file_id of a video sent in a private chat, which is how
// catalog entries are collected.
func (h *commandHandlers) echoVideo(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Video == nil || c.Chat() == nil || c.Chat().Type != telebot.ChatPrivate {
		return nil
	}
	h.commandLogger(c, "video").WithField("file_id", msg.Video.FileID).Info("Echoing video file_id")
	return c.Send(fileIDMessage(msg.Video.FileID), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
}
