package telegram

import (
	"context"

	"daily_video_bot/internal/domain/catalog"
)

// Client defines an interface for delivering catalog videos via a Telegram bot.
type Client interface {
	SendVideo(ctx context.Context, chatID int64, ref catalog.ContentRef) error
}
