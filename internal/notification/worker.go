package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"foyer-backend/internal/model"
)

// queuePerWorker bounds how many released blocs wait for each worker.
const queuePerWorker = 32

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

// SubscriptionStore is the data the workers read and prune.
type SubscriptionStore interface {
	FindBlocByID(ctx context.Context, blocID int64) (*model.Bloc, error)
	SubscriptionsForBloc(ctx context.Context, blocID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool tells bloc subscribers that a place was released.
type WorkerPool struct {
	size    int
	jobs    chan int64
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger

	onChange func()
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s SubscriptionStore, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*queuePerWorker),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// OnChange registers fn to run after an expired subscription was pruned.
// It must be set before Start and may be called from several workers.
func (wp *WorkerPool) OnChange(fn func()) {
	wp.onChange = fn
}

// Start launches the worker goroutines. They stop when ctx is done.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case blocID := <-wp.jobs:
			log.Debug("processing released bloc", zap.Int64("bloc_id", blocID))
			wp.notifyBloc(ctx, blocID)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues a released bloc. It never blocks: when the queue is full
// the event is dropped and logged.
func (wp *WorkerPool) Dispatch(blocID int64) {
	select {
	case wp.jobs <- blocID:
	default:
		wp.log.Warn("notification queue full, dropping event", zap.Int64("bloc_id", blocID))
	}
}

// notifyBloc sends the release message to every subscriber of the bloc.
func (wp *WorkerPool) notifyBloc(ctx context.Context, blocID int64) {
	subscriptions, err := wp.store.SubscriptionsForBloc(ctx, blocID)
	if err != nil {
		wp.log.Error("failed to load subscriptions", zap.Int64("bloc_id", blocID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := fmt.Sprintf("%d", blocID)
	if bloc, err := wp.store.FindBlocByID(ctx, blocID); err != nil {
		wp.log.Warn("failed to load bloc name", zap.Int64("bloc_id", blocID), zap.Error(err))
	} else if bloc.Name != "" {
		label = bloc.Name
	}

	wp.log.Info("sending release notifications",
		zap.Int64("bloc_id", blocID),
		zap.Int("subscribers", len(subscriptions)),
	)
	message := []byte(fmt.Sprintf("A place is available in bloc %s", label))
	for _, sub := range subscriptions {
		wp.send(ctx, sub, message)
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			return
		}
		if wp.onChange != nil {
			wp.onChange()
		}
	}
}
