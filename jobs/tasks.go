package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnnualAggregation computes per-branch opening and closing
	// balances for an accounting year.
	TaskAnnualAggregation = "balancesheet:annual"
)

// AnnualAggregationPayload selects the accounting year to aggregate.
type AnnualAggregationPayload struct {
	Year int `json:"year"`
}

// NewAnnualAggregationTask constructs the aggregation task. The uniqueness
// window keeps duplicate enqueues of the same year from piling up.
func NewAnnualAggregationTask(year int) (*asynq.Task, error) {
	body, err := json.Marshal(AnnualAggregationPayload{Year: year})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnnualAggregation, body,
		asynq.Queue(QueueDefault),
		asynq.Unique(time.Hour),
		asynq.MaxRetry(3),
	), nil
}

// NewAnnualAggregationHandler returns the task handler bound to the
// balance-sheet service. A run blocked by the aggregation mutex is dropped
// rather than retried: the holder is already doing the work.
func NewAnnualAggregationHandler(svc *balancesheet.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AnnualAggregationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		year := payload.Year
		if year <= 0 {
			year = time.Now().UTC().Year() - 1
		}

		results, err := svc.RunAnnual(ctx, year)
		if errors.Is(err, balancesheet.ErrAggregationRunning) {
			logger.Warn("annual aggregation already running", slog.Int("year", year))
			return asynq.SkipRetry
		}
		if err != nil {
			logger.Error("annual aggregation failed", slog.Int("year", year), slog.Any("error", err))
			return err
		}
		logger.Info("annual aggregation complete", slog.Int("year", year), slog.Int("branches", len(results)))
		return nil
	}
}
