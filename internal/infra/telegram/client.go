// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"

	"daily_video_bot/internal/domain/catalog"
	domainTelegram "daily_video_bot/internal/domain/telegram"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Sender is the part of *telebot.Bot the adapter needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
// All sends share one rate limiter so bursts of fires stay under Telegram's global limit.
type TelebotAdapter struct {
	bot     Sender
	limiter *rate.Limiter
}

var _ domainTelegram.Client = (*TelebotAdapter)(nil)

// NewTelebotAdapter limits sends to ratePerSec; zero or less disables the limit.
func NewTelebotAdapter(b Sender, ratePerSec int) *TelebotAdapter {
	limit, burst := rate.Inf, 1
	if ratePerSec > 0 {
		limit, burst = rate.Limit(ratePerSec), ratePerSec
	}
	return &TelebotAdapter{bot: b, limiter: rate.NewLimiter(limit, burst)}
}

// SendVideo sends ref (a Telegram file_id or an http(s) URL) to chatID.
// The call returns when ctx is done even if the underlying request is still running.
func (tba *TelebotAdapter) SendVideo(ctx context.Context, chatID int64, ref catalog.ContentRef) error {
	if err := tba.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	video := &telebot.Video{File: videoFile(ref)}
	done := make(chan error, 1)
	go func() {
		_, err := tba.bot.Send(telebot.ChatID(chatID), video)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func videoFile(ref catalog.ContentRef) telebot.File {
	if ref.IsURL() {
		return telebot.FromURL(string(ref))
	}
	return telebot.File{FileID: string(ref)}
}
