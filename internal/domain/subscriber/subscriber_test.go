package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatus(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name      string
		cursor    int
		total     int
		sent      int
		remaining int
	}{
		{name: "nothing sent", cursor: CursorNone, total: 4, sent: 0, remaining: 4},
		{name: "first sent", cursor: 0, total: 4, sent: 1, remaining: 3},
		{name: "all sent", cursor: 3, total: 4, sent: 4, remaining: 0},
		{name: "catalog shrank", cursor: 5, total: 2, sent: 6, remaining: 0},
		{name: "empty catalog", cursor: CursorNone, total: 0, sent: 0, remaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStatus(&Subscriber{ChatID: 7, RegisteredAt: at, Cursor: tt.cursor}, tt.total, time.Hour)
			assert.Equal(t, int64(7), st.ChatID)
			assert.Equal(t, at, st.RegisteredAt)
			assert.Equal(t, tt.sent, st.Sent)
			assert.Equal(t, tt.total, st.Total)
			assert.Equal(t, tt.remaining, st.Remaining)
			assert.Equal(t, time.Hour, st.Interval)
		})
	}
}
