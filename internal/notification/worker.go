package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"workshop-scheduler/internal/events"
	"workshop-scheduler/internal/metrics"
	"workshop-scheduler/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers engine events to the subscribed display surfaces.
type WorkerPool struct {
	size    int
	jobs    chan events.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, m *metrics.Metrics, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan events.Event, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		metrics: m,
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Forward dispatches every event from sub until ctx is done or sub closes.
func (wp *WorkerPool) Forward(ctx context.Context, sub <-chan events.Event) {
	for {
		select {
		case e, ok := <-sub:
			if !ok {
				return
			}
			select {
			case wp.jobs <- e:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("Worker started")
	for {
		select {
		case e := <-wp.jobs:
			wp.deliver(ctx, e)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("Worker shutting down")
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(e events.Event) {
	wp.jobs <- e
}

// deliver pushes e to every subscription interested in it. Subscriptions bound
// to a person only receive that person's events.
func (wp *WorkerPool) deliver(ctx context.Context, e events.Event) {
	q := wp.db.WithContext(ctx)
	if e.PersonID != nil {
		q = q.Where("person_id IS NULL OR person_id = ?", *e.PersonID)
	}
	var subscriptions []model.PushSubscription
	if err := q.Find(&subscriptions).Error; err != nil {
		wp.log.Error().Err(err).Str("event", string(e.Kind)).Msg("Error fetching subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		wp.log.Error().Err(err).Str("event", string(e.Kind)).Msg("Error encoding event")
		return
	}

	wp.log.Debug().Str("event", string(e.Kind)).Int("subscriptions", len(subscriptions)).Msg("Sending notifications")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.PushSent(false)
		wp.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("Error sending notification")
		return
	}
	defer resp.Body.Close()
	wp.metrics.PushSent(resp.StatusCode < 400)

	if resp.StatusCode == http.StatusGone {
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("Subscription is expired. Deleting.")
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("Failed to delete expired subscription")
		}
	}
}
