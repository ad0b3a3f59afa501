package repositories

import (
	"context"
	"fmt"

	"otomart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UsageRepository recounts a tenant's live resource usage. The counts
// are always taken from the source tables, never cached: quota
// enforcement depends on a transaction-scoped recount.
type UsageRepository interface {
	Count(ctx context.Context, tenantID uuid.UUID, resource models.Resource) (int, error)
	CountAll(ctx context.Context, tenantID uuid.UUID) (map[models.Resource]int, error)
	WithTx(tx pgx.Tx) UsageRepository
}

type usageRepo struct {
	db DB
}

func NewUsageRepo(db DB) UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) WithTx(tx pgx.Tx) UsageRepository {
	return &usageRepo{db: tx}
}

// resourceTables maps quota resources onto the tables owned by the
// resource-creation subsystems. Table names are fixed here rather than
// interpolated from input.
var resourceTables = map[models.Resource]string{
	models.ResourceVehicles:  "vehicles",
	models.ResourceUsers:     "users",
	models.ResourceCustomers: "customers",
	models.ResourceBranches:  "branches",
}

func (r *usageRepo) Count(ctx context.Context, tenantID uuid.UUID, resource models.Resource) (int, error) {
	table, ok := resourceTables[resource]
	if !ok {
		return 0, fmt.Errorf("unknown resource type: %s", resource)
	}

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1`, table)
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *usageRepo) CountAll(ctx context.Context, tenantID uuid.UUID) (map[models.Resource]int, error) {
	usage := make(map[models.Resource]int, len(resourceTables))
	for resource := range resourceTables {
		count, err := r.Count(ctx, tenantID, resource)
		if err != nil {
			return nil, err
		}
		usage[resource] = count
	}
	return usage, nil
}
