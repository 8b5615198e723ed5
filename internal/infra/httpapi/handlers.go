package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"daily_video_bot/internal/domain/subscriber"
	idb "daily_video_bot/internal/infra/database"

	"github.com/gin-gonic/gin"
)

// StatusReader is the read side of app.DeliveryService.
type StatusReader interface {
	Status(ctx context.Context, chatID int64) (*subscriber.Status, error)
}

type SubscriberHandler struct {
	statuses StatusReader
}

type SubscriberResponse struct {
	ChatID          int64      `json:"chat_id"`
	RegisteredAt    time.Time  `json:"registered_at"`
	Sent            int        `json:"sent"`
	Total           int        `json:"total"`
	Remaining       int        `json:"remaining"`
	IntervalSeconds int64      `json:"interval_seconds"`
	NextDelivery    *time.Time `json:"next_delivery,omitempty"`
}

func NewSubscriberHandler(statuses StatusReader) *SubscriberHandler {
	return &SubscriberHandler{statuses: statuses}
}

func (h *SubscriberHandler) GetSubscriber(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id must be an integer"})
		return
	}

	st, err := h.statuses.Status(c, chatID)
	if errors.Is(err, idb.ErrSubscriberNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, newSubscriberResponse(st))
}

func newSubscriberResponse(st *subscriber.Status) SubscriberResponse {
	resp := SubscriberResponse{
		ChatID:          st.ChatID,
		RegisteredAt:    st.RegisteredAt.UTC(),
		Sent:            st.Sent,
		Total:           st.Total,
		Remaining:       st.Remaining,
		IntervalSeconds: int64(st.Interval / time.Second),
	}
	if !st.NextDelivery.IsZero() {
		next := st.NextDelivery.UTC()
		resp.NextDelivery = &next
	}
	return resp
}
