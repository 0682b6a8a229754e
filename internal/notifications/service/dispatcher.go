package service

import (
	"context"
	"errors"
	"time"

	"cowork/internal/notifications/repository"
	"cowork/pkg/config"
	"cowork/pkg/kafka"
	"cowork/pkg/logger"
)

// Dispatcher drains the notification outbox into a Notifier.
type Dispatcher struct {
	outbox      repository.OutboxRepository
	notifier    Notifier
	interval    time.Duration
	batchSize   int
	maxAttempts int
	log         *logger.Logger
	now         func() time.Time
}

func NewDispatcher(outbox repository.OutboxRepository, notifier Notifier, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		outbox:      outbox,
		notifier:    notifier,
		interval:    cfg.OutboxPollInterval,
		batchSize:   cfg.OutboxBatchSize,
		maxAttempts: cfg.OutboxMaxAttempts,
		log:         cfg.Log,
		now:         time.Now,
	}
}

// Run polls the outbox until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("Notification dispatcher started", "interval", d.interval, "batch_size", d.batchSize)
	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("Notification dispatch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			d.log.Info("Notification dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce sends one batch of pending events and returns how many were
// delivered. A failed delivery stays pending until it reaches the attempt
// cap; permanent publish errors fail the event immediately.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	events, err := d.outbox.FindPending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		if err := d.notifier.Notify(ctx, event); err != nil {
			attempts := event.Attempts + 1
			terminal := attempts >= d.maxAttempts || isPermanent(err)
			if markErr := d.outbox.MarkFailed(ctx, event.ID, attempts, err.Error(), terminal); markErr != nil {
				return sent, markErr
			}
			d.log.Warn("Notification delivery failed",
				"event_id", event.ID,
				"booking_id", event.BookingID,
				"outcome", event.Outcome,
				"attempts", attempts,
				"terminal", terminal,
				"error", err,
			)
			continue
		}

		if err := d.outbox.MarkDispatched(ctx, event.ID, d.now()); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func isPermanent(err error) bool {
	var kafkaErr *kafka.KafkaError
	return errors.As(err, &kafkaErr) && kafkaErr.IsPermanent()
}
