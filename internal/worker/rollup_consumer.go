package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/uptrace/bun"

	"github.com/ffxxrr/orlamariecoach-sub000/internal/models"
	"github.com/ffxxrr/orlamariecoach-sub000/internal/rabbitmq"
)

// RollupWorker consumes accepted-batch messages and maintains the
// daily_page_stats rollup table.
type RollupWorker struct {
	db *bun.DB
}

func NewRollupWorker(db *bun.DB) *RollupWorker {
	return &RollupWorker{db: db}
}

// StartWorker starts the consumer process.
// ctx is used for graceful shutdown signal.
func (w *RollupWorker) StartWorker(ctx context.Context) error {
	if rabbitmq.Client == nil {
		return fmt.Errorf("RabbitMQ client not initialized")
	}

	ch := rabbitmq.Client.Channel
	qName := rabbitmq.RollupQueueName

	msgs, err := ch.Consume(
		qName,             // queue
		"rollup-worker-1", // consumer tag
		false,             // auto-ack (manual ack after successful upsert)
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf("Rollup worker started. Waiting for messages in %s", qName)

	go func() {
		for d := range msgs {
			w.processMessage(ctx, d)
		}
	}()

	<-ctx.Done()
	log.Println("Rollup worker shutdown signal received. Canceling consumer...")

	if err := ch.Cancel("rollup-worker-1", false); err != nil {
		log.Printf("Error canceling consumer: %v", err)
	}

	log.Println("Rollup worker exiting")
	return nil
}

func (w *RollupWorker) processMessage(ctx context.Context, d amqp.Delivery) {
	var msg rabbitmq.RollupMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Printf("Invalid rollup message, rejecting: %v", err)
		d.Reject(false)
		return
	}

	day := msg.Timestamp.UTC().Truncate(24 * time.Hour)

	for _, path := range msg.Paths {
		if err := w.bump(ctx, day, path, msg.VisitorID); err != nil {
			log.Printf("Failed to update rollup for %s: %v. Requeueing.", path, err)
			d.Nack(false, true)
			return
		}
	}

	d.Ack(false)
}

// bump increments the (date, path) counters, creating the row on first
// sight of that path on that day. Views count every message; uniques count
// only the first message per visitor per day, tracked through the
// daily_page_visitors set.
func (w *RollupWorker) bump(ctx context.Context, day time.Time, path, visitorID string) error {
	seen := &models.DailyPageVisitor{
		Date:      day,
		Path:      path,
		VisitorID: visitorID,
	}
	res, err := w.db.NewInsert().
		Model(seen).
		On("CONFLICT (date, path, visitor_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	firstVisit, _ := res.RowsAffected()

	stat := &models.DailyPageStat{
		Date:    day,
		Path:    path,
		Views:   1,
		Uniques: firstVisit,
	}
	_, err = w.db.NewInsert().
		Model(stat).
		On("CONFLICT (date, path) DO UPDATE").
		Set("views = dps.views + 1").
		Set("uniques = dps.uniques + ?", firstVisit).
		Exec(ctx)
	return err
}
