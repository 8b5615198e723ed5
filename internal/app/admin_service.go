package app

import (
	"context"
	"errors"
	"fmt"

	"daily_video_bot/internal/domain/catalog"
	"daily_video_bot/internal/domain/subscriber"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")

type AdminService struct {
	repo            subscriber.Repository
	catalog         *catalog.Catalog
	timers          TimerRegistry
	adminTelegramID int64
}

func NewAdminService(repo subscriber.Repository, cat *catalog.Catalog, timers TimerRegistry, adminID int64) *AdminService {
	return &AdminService{
		repo:            repo,
		catalog:         cat,
		timers:          timers,
		adminTelegramID: adminID,
	}
}

// IsAdmin reports whether userID is the configured admin. A zero admin ID disables admin access.
func (s *AdminService) IsAdmin(userID int64) bool {
	return s.adminTelegramID != 0 && userID == s.adminTelegramID
}

// SubscriberOverview is one line of the admin subscriber listing.
type SubscriberOverview struct {
	Status *subscriber.Status
	Armed  bool
}

// ListSubscribers returns progress for every stored subscriber.
func (s *AdminService) ListSubscribers(ctx context.Context, performingAdminID int64) ([]SubscriberOverview, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}

	out := make([]SubscriberOverview, 0, len(subs))
	for _, sub := range subs {
		_, armed := s.timers.Current(sub.ChatID)
		out = append(out, SubscriberOverview{
			Status: subscriber.NewStatus(sub, s.catalog.Len(), 0),
			Armed:  armed,
		})
	}
	return out, nil
}
