package background

import (
	"context"
	"log"
	"time"

	"otomart/internal/config"
	"otomart/internal/models"
	"otomart/internal/repositories"
	"otomart/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// LifecycleScheduler advances time-based subscription transitions:
// trial expiry, invoice due-date expiry, renewal invoicing when a paid
// period lapses, suspension grace-period expiry, and deletion-window
// detection. The gocron job simply calls
// RunTick, which is also exposed to the superadmin API so a tick can
// be triggered on demand.
//
// Each tenant is evaluated in its own advisory-locked transaction, so
// overlapping ticks from multiple instances cannot double-apply a
// transition, and one tenant's failure never aborts the rest.
type LifecycleScheduler struct {
	scheduler       gocron.Scheduler
	db              repositories.TxDB
	tenantRepo      repositories.TenantRepository
	invoiceRepo     repositories.InvoiceRepository
	invoiceSvc      services.InvoiceService
	subscriptionSvc services.SubscriptionService
	policy          config.BillingPolicy
}

const tenantBatchSize = 1000

func NewLifecycleScheduler(db repositories.TxDB, tenantRepo repositories.TenantRepository, invoiceRepo repositories.InvoiceRepository, invoiceSvc services.InvoiceService, subscriptionSvc services.SubscriptionService, policy config.BillingPolicy) (*LifecycleScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	ls := &LifecycleScheduler{
		scheduler:       scheduler,
		db:              db,
		tenantRepo:      tenantRepo,
		invoiceRepo:     invoiceRepo,
		invoiceSvc:      invoiceSvc,
		subscriptionSvc: subscriptionSvc,
		policy:          policy,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(ls.tick),
		gocron.WithName("subscription-lifecycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return ls, nil
}

func (ls *LifecycleScheduler) Start() {
	log.Printf("Starting subscription lifecycle scheduler")
	ls.scheduler.Start()
}

func (ls *LifecycleScheduler) Stop() error {
	log.Printf("Stopping subscription lifecycle scheduler")
	return ls.scheduler.Shutdown()
}

func (ls *LifecycleScheduler) tick() {
	if _, _, err := ls.RunTick(context.Background()); err != nil {
		log.Printf("Lifecycle tick failed: %v", err)
	}
}

// RunTick evaluates every tenant once and reports how many were
// evaluated and how many failed. Per-tenant failures are logged and
// skipped; the tick itself only fails when the tenant list cannot be
// read.
func (ls *LifecycleScheduler) RunTick(ctx context.Context) (int, int, error) {
	now := time.Now()
	evaluated, failed := 0, 0

	for offset := 0; ; offset += tenantBatchSize {
		tenants, err := ls.tenantRepo.List(ctx, tenantBatchSize, offset)
		if err != nil {
			return evaluated, failed, err
		}
		if len(tenants) == 0 {
			break
		}

		for _, tenant := range tenants {
			evaluated++
			if err := ls.evaluateTenant(ctx, tenant.ID, now); err != nil {
				failed++
				log.Printf("Lifecycle evaluation failed for tenant %s: %v", tenant.ID, err)
			}
		}
		if len(tenants) < tenantBatchSize {
			break
		}
	}

	log.Printf("Lifecycle tick completed: %d tenants evaluated, %d failed", evaluated, failed)
	return evaluated, failed, nil
}

// evaluateTenant applies at most the transitions due for one tenant,
// in one transaction serialized per tenant.
func (ls *LifecycleScheduler) evaluateTenant(ctx context.Context, tenantID uuid.UUID, now time.Time) error {
	tx, err := ls.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, tenantID); err != nil {
		return err
	}

	tenantRepo := ls.tenantRepo.WithTx(tx)
	tenant, err := tenantRepo.GetForUpdate(ctx, tenantID)
	if err != nil {
		return err
	}

	switch tenant.SubscriptionStatus {
	case models.SubscriptionTrial:
		// A subscription invoice raised during the trial still expires
		// on its own due date.
		if _, err := ls.invoiceRepo.WithTx(tx).MarkOverdue(ctx, tenantID, now); err != nil {
			return err
		}
		if tenant.TrialEndsAt != nil && tenant.TrialEndsAt.Before(now) {
			if err := ls.subscriptionSvc.ExpireTrialTx(ctx, tx, tenantID); err != nil {
				return err
			}
		}

	case models.SubscriptionActive:
		overdue, err := ls.invoiceRepo.WithTx(tx).MarkOverdue(ctx, tenantID, now)
		if err != nil {
			return err
		}
		if overdue == 0 {
			// An earlier tick may have flipped the invoice but failed
			// before the tenant transition; re-check.
			open, err := ls.invoiceRepo.WithTx(tx).FindOpen(ctx, tenantID)
			if err != nil {
				return err
			}
			if open == nil {
				// No invoice outstanding: open the next period's invoice
				// once the paid period has lapsed. The overdue sweep on a
				// later tick drives the rest.
				if tenant.SubscriptionEndsAt != nil && tenant.SubscriptionEndsAt.Before(now) {
					if _, err := ls.invoiceSvc.RenewTx(ctx, tx, tenant); err != nil {
						return err
					}
				}
				break
			}
			if open.Status != models.InvoiceOverdue {
				break
			}
		}
		if err := ls.subscriptionSvc.MarkPastDueTx(ctx, tx, tenantID); err != nil {
			return err
		}

	case models.SubscriptionPastDue:
		if _, err := ls.invoiceRepo.WithTx(tx).MarkOverdue(ctx, tenantID, now); err != nil {
			return err
		}
		if tenant.PastDueSince != nil && now.Sub(*tenant.PastDueSince) > time.Duration(ls.policy.GraceDays)*24*time.Hour {
			if err := ls.subscriptionSvc.SuspendTx(ctx, tx, tenantID, "scheduler"); err != nil {
				return err
			}
		}

	case models.SubscriptionSuspended:
		if tenant.ScheduledDeletionAt != nil && tenant.ScheduledDeletionAt.Before(now) {
			// Purge is irreversible and runs only as an explicitly
			// confirmed superadmin operation; the scheduler just flags
			// the candidate.
			log.Printf("Tenant %s is past its scheduled deletion date (%s); awaiting confirmed purge", tenantID, tenant.ScheduledDeletionAt.Format(time.RFC3339))
		}
	}

	return tx.Commit(ctx)
}
