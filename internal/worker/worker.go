package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
	"github.com/clientdesk/backend/pkg/queue"
)

// dispatchBatchSize caps the reminders handed off per poll tick.
const dispatchBatchSize = 100

// ReminderStore is the slice of the reminders repository the worker uses.
type ReminderStore interface {
	ListDueUnsent(ctx context.Context, db database.Queryer, due time.Time, limit int) ([]models.Reminder, error)
	MarkSent(ctx context.Context, db database.Queryer, id int64, at time.Time) error
}

// Notifier delivers one reminder to a human. Actual channels (email, SMS)
// plug in here; the default implementation just logs.
type Notifier interface {
	Notify(ctx context.Context, payload queue.ReminderDispatchPayload) error
}

// LogNotifier is a Notifier that records deliveries in the log only.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, payload queue.ReminderDispatchPayload) error {
	n.Logger.Info("reminder delivered",
		zap.Int64("reminder_id", payload.ReminderID),
		zap.Int64("contact_id", payload.ContactID),
		zap.String("category", string(payload.Category)),
		zap.Time("due_at", payload.DueAt))
	return nil
}

// Enqueuer hands reminder dispatch jobs to the delivery queue.
type Enqueuer interface {
	EnqueueReminderDispatch(ctx context.Context, payload queue.ReminderDispatchPayload) error
}

// Dispatcher polls for due unsent reminders on a cron schedule and hands
// them to the delivery queue. A reminder is marked sent once it is on the
// queue; from the engine's point of view "sent" means handed off.
type Dispatcher struct {
	db     database.Queryer
	store  ReminderStore
	queue  Enqueuer
	logger *zap.Logger
}

// NewDispatcher creates a reminder dispatcher.
func NewDispatcher(db database.Queryer, store ReminderStore, q Enqueuer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{db: db, store: store, queue: q, logger: logger}
}

// DispatchDue runs one poll tick: list due unsent reminders, enqueue each,
// mark it sent. A reminder that fails to enqueue stays unsent and is picked
// up again on the next tick.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := d.store.ListDueUnsent(ctx, d.db, now, dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	dispatched := 0
	for _, rem := range due {
		payload := queue.ReminderDispatchPayload{
			ReminderID: rem.ID,
			ContactID:  rem.ContactID,
			Category:   rem.Category,
			DueAt:      rem.DueAt,
		}
		if err := d.queue.EnqueueReminderDispatch(ctx, payload); err != nil {
			d.logger.Error("enqueue failed, reminder stays unsent",
				zap.Error(err), zap.Int64("reminder_id", rem.ID))
			continue
		}
		if err := d.store.MarkSent(ctx, d.db, rem.ID, now); err != nil {
			// The job is already queued; the consumer must tolerate a
			// duplicate on the next tick.
			d.logger.Error("mark sent failed", zap.Error(err), zap.Int64("reminder_id", rem.ID))
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		d.logger.Info("reminders dispatched", zap.Int("count", dispatched))
	}
	return dispatched, nil
}

// Run schedules DispatchDue on the given cron spec and blocks until ctx is
// done. Overlapping ticks are skipped rather than stacked.
func (d *Dispatcher) Run(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		tickCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := d.DispatchDue(tickCtx, time.Now().UTC()); err != nil {
			d.logger.Error("dispatch tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule dispatcher: %w", err)
	}
	c.Start()
	d.logger.Info("reminder dispatcher started", zap.String("schedule", spec))
	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	return nil
}

// Consumer drains the delivery queue and pushes each reminder through the
// Notifier, retrying failed jobs until they land in the DLQ.
type Consumer struct {
	queue    *queue.Queue
	notifier Notifier
	logger   *zap.Logger
}

// NewConsumer creates a reminder delivery consumer.
func NewConsumer(q *queue.Queue, notifier Notifier, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{queue: q, notifier: notifier, logger: logger}
}

// Process executes one reminder dispatch job.
func (c *Consumer) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReminderDispatch {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReminderDispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := c.notifier.Notify(ctx, payload); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Run starts the consumer loop: dequeue, process, retry on error.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("reminder consumer stopping")
			return
		default:
		}

		job, _, err := c.queue.Dequeue(ctx)
		if err != nil {
			c.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		c.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := c.Process(ctx, job); err != nil {
			c.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := c.queue.Retry(ctx, job); reErr != nil {
				c.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
