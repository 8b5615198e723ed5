package telegram

import (
	"context"
	"errors"

	"daily_video_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b Handler, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle("/subscribers", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/subscribers",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedMessage)
		}

		list, err := adminService.ListSubscribers(ctx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(unauthorizedMessage)
			}
			logWithError.Error("Failed to list subscribers")
			return c.Send(genericErrorMessage)
		}

		handlerLogger.WithField("subscribers_count", len(list)).Info("Successfully retrieved subscriber list")
		return c.Send(subscribersMessage(list))
	})
}
