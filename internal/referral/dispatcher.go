package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultDispatchInterval = 30 * time.Second
	defaultDispatchGrace    = 10 * time.Second
	defaultDispatchBatch    = 100
	maxLastErrorLength      = 1000
)

// Outbox errors.
var (
	ErrEventNotFound     = errors.New("referral: commission event not found")
	ErrEventNotRetryable = errors.New("referral: only failed events can be retried")
)

// Dispatcher drains pending commission events through a Processor.
type Dispatcher struct {
	db        *gorm.DB
	processor Processor
	interval  time.Duration
	grace     time.Duration
	batchSize int
	now       func() time.Time
}

// NewDispatcher constructs a dispatcher polling every interval.
func NewDispatcher(db *gorm.DB, processor Processor, interval time.Duration) *Dispatcher {
	if db == nil || processor == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	return &Dispatcher{
		db:        db,
		processor: processor,
		interval:  interval,
		grace:     defaultDispatchGrace,
		batchSize: defaultDispatchBatch,
		now:       time.Now,
	}
}

// Run drains the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d == nil {
		return nil
	}
	log.Infof("commission dispatcher started (interval=%s)", d.interval)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := d.DispatchOnce(ctx); err != nil {
			log.WithError(err).Warn("commission dispatcher: pass failed")
		}
		timer := time.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return nil
		case <-timer.C:
		}
	}
}

// DispatchOnce processes one batch of pending events older than the grace
// period and returns how many completed.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	cutoff := d.now().UTC().Add(-d.grace)
	var events []models.CommissionEvent
	if errFind := d.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", models.CommissionEventPending, cutoff).
		Order("id ASC").
		Limit(d.batchSize).
		Find(&events).Error; errFind != nil {
		return 0, errFind
	}
	done := 0
	for i := range events {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.Dispatch(ctx, &events[i]); err != nil {
			log.WithError(err).WithField("event_id", events[i].EventID).Warn("commission dispatcher: event failed")
			continue
		}
		done++
	}
	if done > 0 {
		log.Infof("commission dispatcher: processed %d events", done)
	}
	return done, nil
}

// Dispatch runs the processor for one pending event and records the outcome.
// A failure bumps attempts and marks the event failed once the configured
// maximum is reached.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *models.CommissionEvent) (*models.Commission, error) {
	if d == nil {
		return nil, errors.New("referral: dispatcher not configured")
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	if ev.Status != models.CommissionEventPending {
		return nil, fmt.Errorf("referral: event %s is %s", ev.EventID, ev.Status)
	}
	conn := d.db.WithContext(ctx)

	var order models.VIPOrder
	if errFind := conn.First(&order, ev.OrderID).Error; errFind != nil {
		return nil, d.recordFailure(ctx, ev, fmt.Errorf("load order: %w", errFind))
	}
	var card *models.CardKey
	if ev.CardKeyCode != "" {
		var row models.CardKey
		if errFind := conn.Where("code = ?", ev.CardKeyCode).First(&row).Error; errFind != nil {
			return nil, d.recordFailure(ctx, ev, fmt.Errorf("load card: %w", errFind))
		}
		card = &row
	}

	commission, errProcess := d.processor.ProcessCommission(ctx, ev.UserID, &order, card, ev.EventType)
	if errProcess != nil {
		return nil, d.recordFailure(ctx, ev, errProcess)
	}

	now := d.now().UTC()
	updates := map[string]any{
		"status":       models.CommissionEventDone,
		"processed_at": now,
		"attempts":     ev.Attempts + 1,
		"last_error":   "",
	}
	if commission != nil {
		updates["commission_id"] = commission.ID
	}
	if errUpdate := conn.Model(&models.CommissionEvent{}).
		Where("id = ? AND status = ?", ev.ID, models.CommissionEventPending).
		Updates(updates).Error; errUpdate != nil {
		return commission, fmt.Errorf("referral: mark event done: %w", errUpdate)
	}
	ev.Status = models.CommissionEventDone
	ev.Attempts++
	ev.ProcessedAt = &now
	ev.LastError = ""
	if commission != nil {
		ev.CommissionID = &commission.ID
	}
	return commission, nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, ev *models.CommissionEvent, cause error) error {
	maxAttempts := settings.Int(settings.CommissionMaxAttemptsKey, settings.DefaultCommissionMaxAttempts)
	attempts := ev.Attempts + 1
	status := models.CommissionEventPending
	if maxAttempts > 0 && attempts >= maxAttempts {
		status = models.CommissionEventFailed
	}
	msg := cause.Error()
	if len(msg) > maxLastErrorLength {
		msg = msg[:maxLastErrorLength]
	}
	if errUpdate := d.db.WithContext(ctx).Model(&models.CommissionEvent{}).
		Where("id = ? AND status = ?", ev.ID, models.CommissionEventPending).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"last_error": msg,
		}).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("event_id", ev.EventID).Error("commission dispatcher: record failure")
	}
	ev.Status = status
	ev.Attempts = attempts
	ev.LastError = msg
	return cause
}

// Retry resets a failed event to pending so the next pass picks it up.
func (d *Dispatcher) Retry(ctx context.Context, id uint64) (*models.CommissionEvent, error) {
	conn := d.db.WithContext(ctx)
	res := conn.Model(&models.CommissionEvent{}).
		Where("id = ? AND status = ?", id, models.CommissionEventFailed).
		Updates(map[string]any{"status": models.CommissionEventPending, "attempts": 0})
	if res.Error != nil {
		return nil, res.Error
	}
	var ev models.CommissionEvent
	if errFind := conn.First(&ev, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, errFind
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: event %s is %s", ErrEventNotRetryable, ev.EventID, ev.Status)
	}
	return &ev, nil
}
