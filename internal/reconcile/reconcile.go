// Package reconcile settles pending registrations whose payment outcome
// never reached the server, by asking the gateway directly.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/ambiora/techfest-backend/internal/model"
	"github.com/ambiora/techfest-backend/internal/payment"
	"github.com/ambiora/techfest-backend/internal/repository"
	"github.com/ambiora/techfest-backend/internal/service"
)

type Reconciler struct {
	Registrations repository.RegistrationStore
	Payments      *service.RegistrationService
	Gateway       payment.Gateway
	// MinAge leaves fresh orders alone while the buyer is still on the
	// gateway page.
	MinAge time.Duration
	Batch  int
	// MaxAttempts is how many lookups an order the gateway has never
	// heard of survives before it is failed. Zero keeps it pending.
	MaxAttempts int
	Now         func() time.Time
}

type Result struct {
	Checked int
	Settled int
	Failed  int
	Errors  int
}

func (r Result) String() string {
	return fmt.Sprintf("checked=%d settled=%d failed=%d errors=%d", r.Checked, r.Settled, r.Failed, r.Errors)
}

// RunOnce checks one batch of stale pending registrations. Each row is
// stamped before the lookup so the next batch moves on to rows that have
// waited longest. A gateway error on one order is logged and does not
// stop the batch.
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	if !r.Gateway.Configured() {
		return res, nil
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	pending, err := r.Registrations.PendingRegistrations(ctx, now.Add(-r.MinAge), r.Batch)
	if err != nil {
		return res, fmt.Errorf("load pending registrations: %w", err)
	}
	for _, reg := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		checked, err := r.Registrations.MarkChecked(ctx, reg.OrderID, now)
		if errors.Is(err, repository.ErrStaleWrite) {
			continue
		}
		if err != nil {
			res.Errors++
			log.Printf("reconcile: %s: mark checked: %v", reg.OrderID, err)
			continue
		}
		res.Checked++
		updated, _, err := r.Payments.Reconcile(ctx, checked, service.SourceReconcile)
		if payment.OrderUnknown(err) && r.MaxAttempts > 0 && checked.ReconcileAttempts >= r.MaxAttempts {
			log.Printf("reconcile: %s: unknown to gateway after %d attempts, failing", reg.OrderID, checked.ReconcileAttempts)
			updated, err = r.Payments.FailUnknown(ctx, checked)
		}
		if err != nil {
			res.Errors++
			log.Printf("reconcile: %s: %v", reg.OrderID, err)
			continue
		}
		switch updated.PaymentStatus {
		case model.PaymentSuccess:
			res.Settled++
		case model.PaymentFailed:
			res.Failed++
		}
	}
	return res, nil
}

// Start runs RunOnce every interval until ctx is done. Runs never
// overlap; a slow run delays the next one.
func Start(ctx context.Context, r *Reconciler, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			res, err := r.RunOnce(ctx)
			if err != nil {
				log.Printf("reconcile: %v", err)
				return
			}
			if res.Checked > 0 {
				log.Printf("reconcile: %s", res)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reconcile job: %w", err)
	}
	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("reconcile: shutdown: %v", err)
		}
	}()
	return sched, nil
}
