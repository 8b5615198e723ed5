package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"daily_video_bot/internal/app"
	"daily_video_bot/internal/domain/subscriber"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

func greetingMessage(firstName string, interval time.Duration) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "друже"
	}
	return fmt.Sprintf("Вітаю, %s! Я надсилатиму тобі по одному відео %s.\n"+
		"Команди: /status — прогрес, /stop — зупинити, /help — довідка", name, describeInterval(interval))
}

const (
	stoppedMessage       = "Зупинив розсилку й видалив твій прогрес. Повернутись: /start"
	notSubscribedMessage = "Поки що ти не підписаний. Натисни /start"
	genericErrorMessage  = "Сталася помилка. Будь ласка, спробуй пізніше."
	unauthorizedMessage  = "Помилка: у вас немає прав для виконання цієї команди."
)

func helpMessage(interval time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Я надсилаю по одному відео %s після /start.\n\n", describeInterval(interval)))
	b.WriteString("Команди:\n")
	b.WriteString("/start — підписатися\n")
	b.WriteString("/stop — відписатися та скинути прогрес\n")
	b.WriteString("/status — перевірити прогрес\n")
	b.WriteString("/help — ця довідка\n\n")
	b.WriteString("Бот витримує перезапуски: прогрес зберігається, розклад відновлюється.")
	return b.String()
}

// statusMessage renders st as Telegram HTML.
func statusMessage(st *subscriber.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Старт: <code>%s</code>\n", html.EscapeString(st.RegisteredAt.UTC().Format(timestampLayout)))
	fmt.Fprintf(&b, "Надіслано відео: <b>%d</b> із <b>%d</b>\n", st.Sent, st.Total)
	fmt.Fprintf(&b, "Залишилось: <b>%d</b>\n", st.Remaining)
	if !st.NextDelivery.IsZero() {
		fmt.Fprintf(&b, "Наступне відео: <code>%s</code>\n", st.NextDelivery.UTC().Format(timestampLayout))
	}
	fmt.Fprintf(&b, "(інтервал: %s)", describeInterval(st.Interval))
	return b.String()
}

func describeInterval(d time.Duration) string {
	switch {
	case d == 24*time.Hour:
		return "щодня"
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("кожні %d годин", int(d/time.Hour))
	default:
		return "кожні " + d.String()
	}
}

func fileIDMessage(fileID string) string {
	return fmt.Sprintf("Отримав file_id: <code>%s</code>", html.EscapeString(fileID))
}

func subscribersMessage(list []app.SubscriberOverview) string {
	if len(list) == 0 {
		return "Підписників немає."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- Підписники: %d ---\n", len(list))
	for _, o := range list {
		timer := "таймер вимкнено"
		if o.Armed {
			timer = "таймер активний"
		}
		fmt.Fprintf(&b, "Chat ID: %d, старт: %s, надіслано: %d/%d, %s\n",
			o.Status.ChatID,
			o.Status.RegisteredAt.UTC().Format(timestampLayout),
			o.Status.Sent,
			o.Status.Total,
			timer)
	}
	return b.String()
}
