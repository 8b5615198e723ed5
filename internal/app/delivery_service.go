package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily_video_bot/internal/domain/catalog"
	"daily_video_bot/internal/domain/subscriber"
	domainTelegram "daily_video_bot/internal/domain/telegram"
	idb "daily_video_bot/internal/infra/database"
	"daily_video_bot/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
)

// ErrTransportFailure wraps any error returned while handing a video to Telegram.
var ErrTransportFailure = errors.New("video delivery failed")

// Outcome describes what a single timer fire did.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomeGone      Outcome = "gone"     // subscriber record missing, timer cancelled
	OutcomeSkipped   Outcome = "skipped"  // empty catalog
	OutcomeFinished  Outcome = "finished" // end of catalog with wrap-around disabled
	OutcomeStale     Outcome = "stale"    // fire from a timer that was replaced or cancelled
)

// TimerRegistry is the subset of scheduler.TimerRegistry the delivery service drives.
type TimerRegistry interface {
	Arm(chatID int64, interval, firstDelay time.Duration, fn scheduler.FireFunc) (scheduler.Handle, error)
	Cancel(chatID int64) bool
	CancelHandle(chatID int64, h scheduler.Handle) bool
	Current(chatID int64) (scheduler.Handle, bool)
	NextFire(chatID int64) (time.Time, bool)
	Len() int
}

// Metrics receives delivery observations. A nil Metrics disables them.
type Metrics interface {
	ObserveDispatch(outcome string, took time.Duration)
	ObserveSubscription(action string)
	SetArmedTimers(n int)
}

type DeliveryOptions struct {
	Interval             time.Duration
	SendFirstImmediately bool
	RecoveryDelay        time.Duration
	WrapAround           bool
	SendTimeout          time.Duration
}

// DeliveryService registers subscribers, owns their timers and performs each dispatch.
type DeliveryService struct {
	repo    subscriber.Repository
	catalog *catalog.Catalog
	client  domainTelegram.Client
	timers  TimerRegistry
	opts    DeliveryOptions
	metrics Metrics
	logger  *logrus.Entry

	locks *keyedLocker
	now   func() time.Time

	// fires run outside any request; ctx is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDeliveryService(
	repo subscriber.Repository,
	cat *catalog.Catalog,
	client domainTelegram.Client,
	timers TimerRegistry,
	opts DeliveryOptions,
	metrics Metrics,
	logger *logrus.Entry,
) *DeliveryService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DeliveryService{
		repo:    repo,
		catalog: cat,
		client:  client,
		timers:  timers,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		locks:   newKeyedLocker(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close aborts in-flight dispatches. Timers are owned and stopped by the registry.
func (s *DeliveryService) Close() {
	s.cancel()
}

func (s *DeliveryService) CatalogSize() int { return s.catalog.Len() }

func (s *DeliveryService) Interval() time.Duration { return s.opts.Interval }

// Register stores the subscriber (keeping any progress) and (re)arms its timer.
func (s *DeliveryService) Register(ctx context.Context, chatID int64, now time.Time) error {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	log := s.logger.WithField("chat_id", chatID)

	if err := s.repo.Upsert(ctx, chatID, now.UTC()); err != nil {
		log.WithError(err).Error("Failed to store subscriber")
		return fmt.Errorf("failed to register subscriber: %w", err)
	}

	firstDelay := s.opts.Interval
	if s.opts.SendFirstImmediately {
		firstDelay = 0
	}
	if _, err := s.timers.Arm(chatID, s.opts.Interval, firstDelay, s.onFire); err != nil {
		log.WithError(err).Error("Failed to arm delivery timer")
		return fmt.Errorf("failed to arm delivery timer: %w", err)
	}

	s.metrics.ObserveSubscription("register")
	s.metrics.SetArmedTimers(s.timers.Len())
	log.WithField("first_delay", firstDelay.String()).Info("Subscriber registered")
	return nil
}

// Unregister cancels the timer before deleting the record, so a concurrent fire finds
// no timer (stale) or no record (gone) instead of a half-removed subscriber. If the
// delete fails the timer is re-armed one interval out.
func (s *DeliveryService) Unregister(ctx context.Context, chatID int64) error {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	log := s.logger.WithField("chat_id", chatID)

	hadTimer := s.timers.Cancel(chatID)
	s.metrics.SetArmedTimers(s.timers.Len())

	if err := s.repo.Delete(ctx, chatID); err != nil {
		log.WithError(err).Error("Failed to delete subscriber")
		if hadTimer {
			// The record is still there, so the subscription must keep running.
			if _, armErr := s.timers.Arm(chatID, s.opts.Interval, s.opts.Interval, s.onFire); armErr != nil {
				log.WithError(armErr).Error("Failed to restore delivery timer after failed delete")
			}
			s.metrics.SetArmedTimers(s.timers.Len())
		}
		return fmt.Errorf("failed to unregister subscriber: %w", err)
	}

	s.metrics.ObserveSubscription("unregister")
	log.WithField("had_timer", hadTimer).Info("Subscriber unregistered")
	return nil
}

// Status reports progress; it returns idb.ErrSubscriberNotFound for unknown chats.
func (s *DeliveryService) Status(ctx context.Context, chatID int64) (*subscriber.Status, error) {
	sub, err := s.repo.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	st := subscriber.NewStatus(sub, s.catalog.Len(), s.opts.Interval)
	if next, ok := s.timers.NextFire(chatID); ok {
		st.NextDelivery = next
	}
	return st, nil
}

// Recover re-arms a timer for every stored subscriber with the same short delay.
// It returns how many timers were armed.
func (s *DeliveryService) Recover(ctx context.Context) (int, error) {
	if err := s.repo.EnsureSchema(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure subscriber schema: %w", err)
	}

	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscribers: %w", err)
	}

	if s.catalog.Empty() {
		s.logger.Warn("Catalog is empty: timers will be restored but nothing will be sent")
	}

	armed := 0
	for _, sub := range subs {
		log := s.logger.WithFields(logrus.Fields{"chat_id": sub.ChatID, "cursor": sub.Cursor})

		if !s.opts.WrapAround && s.catalog.Exhausted(sub.Cursor, false) {
			log.Info("Subscriber already received the whole catalog, not restoring")
			continue
		}

		unlock := s.locks.Lock(sub.ChatID)
		_, err := s.timers.Arm(sub.ChatID, s.opts.Interval, s.opts.RecoveryDelay, s.onFire)
		unlock()
		if err != nil {
			log.WithError(err).Error("Failed to restore delivery timer")
			continue
		}
		armed++
		log.Info("Delivery restored")
	}

	s.metrics.ObserveSubscription("recover")
	s.metrics.SetArmedTimers(s.timers.Len())
	s.logger.WithFields(logrus.Fields{"subscribers": len(subs), "armed": armed}).Info("Recovery complete")
	return armed, nil
}

func (s *DeliveryService) onFire(chatID int64, h scheduler.Handle) {
	_, _ = s.Dispatch(s.ctx, chatID, h)
}

// Dispatch sends the next catalog entry to chatID and commits the cursor only after a
// successful send. A crash between the two repeats the same video on the next fire.
// Failures are logged and left for the next scheduled fire; there is no immediate retry.
func (s *DeliveryService) Dispatch(ctx context.Context, chatID int64, h scheduler.Handle) (outcome Outcome, err error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	start := s.now()
	log := s.logger.WithFields(logrus.Fields{"chat_id": chatID, "handle": h})
	defer func() {
		s.metrics.ObserveDispatch(string(outcome), s.now().Sub(start))
	}()

	if cur, ok := s.timers.Current(chatID); !ok || cur != h {
		log.Debug("Ignoring fire from a replaced or cancelled timer")
		return OutcomeStale, nil
	}

	sub, err := s.repo.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			s.stopTimer(chatID, h)
			log.Info("Subscriber no longer exists, timer cancelled")
			return OutcomeGone, nil
		}
		log.WithError(err).Error("Failed to load subscriber")
		return OutcomeFailed, err
	}

	if s.catalog.Empty() {
		log.Warn("Catalog is empty, nothing to send")
		return OutcomeSkipped, nil
	}

	next, ok := s.catalog.Next(sub.Cursor, s.opts.WrapAround)
	if !ok {
		s.stopTimer(chatID, h)
		log.WithField("cursor", sub.Cursor).Info("Whole catalog delivered, timer cancelled")
		return OutcomeFinished, nil
	}
	log = log.WithFields(logrus.Fields{"cursor": sub.Cursor, "index": next})

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	err = s.client.SendVideo(sendCtx, chatID, s.catalog.At(next))
	cancel()
	if err != nil {
		log.WithError(err).Error("Failed to send video, will retry on the next interval")
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	if err := s.repo.AdvanceCursor(ctx, chatID, next); err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			s.stopTimer(chatID, h)
			log.Info("Subscriber removed during delivery, timer cancelled")
			return OutcomeGone, nil
		}
		log.WithError(err).Error("Video sent but cursor not saved, it will be sent again")
		return OutcomeFailed, err
	}

	log.Info("Video delivered")
	return OutcomeDelivered, nil
}

func (s *DeliveryService) stopTimer(chatID int64, h scheduler.Handle) {
	s.timers.CancelHandle(chatID, h)
	s.metrics.SetArmedTimers(s.timers.Len())
}

type nopMetrics struct{}

func (nopMetrics) ObserveDispatch(string, time.Duration) {}
func (nopMetrics) ObserveSubscription(string)            {}
func (nopMetrics) SetArmedTimers(int)                    {}
