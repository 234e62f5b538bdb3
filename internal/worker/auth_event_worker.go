package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"andromeda-healthcare/internal/model"
	"andromeda-healthcare/internal/platform/rabbitmq"
)

type AuthEventStore interface {
	Create(ctx context.Context, event *model.AuthEvent) error
}

// AuthEventWorker drains the auth event queue into the audit table.
type AuthEventWorker struct {
	conn      *amqp.Connection
	repo      AuthEventStore
	queueName string
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuthEventWorker(conn *amqp.Connection, repo AuthEventStore, queueName string, log *slog.Logger) *AuthEventWorker {
	if log == nil {
		log = slog.Default()
	}
	return &AuthEventWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		log:       log.With(slog.String("component", "auth_event_worker")),
	}
}

func (w *AuthEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Error("drop auth event", slog.Any("error", err))
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

// handle decodes and persists one delivery body.
func (w *AuthEventWorker) handle(ctx context.Context, body []byte) error {
	event, err := rabbitmq.DecodeEvent(body)
	if err != nil {
		return err
	}
	event.ID = 0
	if err := w.repo.Create(ctx, &event); err != nil {
		return fmt.Errorf("persist auth event failed: %w", err)
	}
	return nil
}

func (w *AuthEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
