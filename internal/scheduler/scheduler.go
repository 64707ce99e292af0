package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hustariz/rascarobingo/internal/lock"
	"github.com/hustariz/rascarobingo/internal/metrics"
	"github.com/hustariz/rascarobingo/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec fires at local midnight.
const DefaultSpec = "0 0 * * *"

// DailyReset zeroes every user's day-scoped counters and streak.
type DailyReset struct {
	logger *zap.Logger
	store  *store.Store
	locker lock.Locker
	cron   *cron.Cron
	spec   string
	now    func() time.Time
}

// NewDailyReset creates a DailyReset that runs on spec in loc once started.
func NewDailyReset(logger *zap.Logger, st *store.Store, locker lock.Locker, spec string, loc *time.Location) *DailyReset {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailyReset{
		logger: logger.Named("scheduler"),
		store:  st,
		locker: locker,
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
		now:    time.Now,
	}
}

// Start registers the reset job and starts the cron loop.
func (d *DailyReset) Start() error {
	_, err := d.cron.AddFunc(d.spec, func() {
		if _, err := d.ResetAll(context.Background()); err != nil {
			d.logger.Error("Daily reset finished with errors", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", d.spec, err)
	}
	d.cron.Start()
	d.logger.Info("Daily reset scheduled", zap.String("spec", d.spec))
	return nil
}

// Stop stops the cron loop and waits for a running reset to finish or ctx to expire.
func (d *DailyReset) Stop(ctx context.Context) {
	done := d.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		d.logger.Warn("Daily reset still running at shutdown")
	}
}

// ResetAll resets every user and returns how many were reset. A failing user
// does not stop the others; their errors are joined.
func (d *DailyReset) ResetAll(ctx context.Context) (int, error) {
	ids, err := d.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		reset int
		errs  []error
	)
	for _, id := range ids {
		if err := d.resetUser(ctx, id); err != nil {
			d.logger.Error("Failed to reset user", zap.String("user_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		reset++
	}

	metrics.RecordDailyReset(reset, d.now())
	d.logger.Info("Daily stats reset", zap.Int("users", reset), zap.Int("failed", len(errs)))
	return reset, errors.Join(errs...)
}

func (d *DailyReset) resetUser(ctx context.Context, userID string) error {
	unlock, err := d.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	defer unlock()

	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	user.RiskProfile.ResetDaily()
	return d.store.SaveProfile(ctx, user)
}
