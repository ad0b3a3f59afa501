package repositories

import (
	"context"
	"time"

	"otomart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ApprovalRepository interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error)
	// GetForUpdate re-reads the request row with a row lock. Only
	// meaningful on a repository rebound to a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error)
	List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRequest, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.ApprovalRequest, error)
	// MarkProcessed records the decision only if the request is still
	// PENDING; the returned bool reports whether the row changed.
	MarkProcessed(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, processedBy uuid.UUID, processedAt time.Time) (bool, error)
	WithTx(tx pgx.Tx) ApprovalRepository
}

type approvalRepo struct {
	db DB
}

func NewApprovalRepo(db DB) ApprovalRepository {
	return &approvalRepo{db: db}
}

func (r *approvalRepo) WithTx(tx pgx.Tx) ApprovalRepository {
	return &approvalRepo{db: tx}
}

const approvalColumns = `id, tenant_id, type, status, payload, requested_by, requested_at, processed_at, processed_by`

func scanApproval(row pgx.Row) (*models.ApprovalRequest, error) {
	request := &models.ApprovalRequest{}
	err := row.Scan(&request.ID, &request.TenantID, &request.Type, &request.Status, &request.Payload, &request.RequestedBy, &request.RequestedAt, &request.ProcessedAt, &request.ProcessedBy)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *approvalRepo) Create(ctx context.Context, request *models.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (id, tenant_id, type, status, payload, requested_by, requested_at, processed_at, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query, request.ID, request.TenantID, request.Type, request.Status, request.Payload, request.RequestedBy, request.RequestedAt, request.ProcessedAt, request.ProcessedBy)
	return err
}

func (r *approvalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE id = $1
	`
	return scanApproval(r.db.QueryRow(ctx, query, id))
}

func (r *approvalRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE id = $1
		FOR UPDATE
	`
	return scanApproval(r.db.QueryRow(ctx, query, id))
}

func (r *approvalRepo) List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApprovals(rows)
}

func (r *approvalRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE tenant_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApprovals(rows)
}

func collectApprovals(rows pgx.Rows) ([]*models.ApprovalRequest, error) {
	var requests []*models.ApprovalRequest
	for rows.Next() {
		request := &models.ApprovalRequest{}
		if err := rows.Scan(&request.ID, &request.TenantID, &request.Type, &request.Status, &request.Payload, &request.RequestedBy, &request.RequestedAt, &request.ProcessedAt, &request.ProcessedBy); err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func (r *approvalRepo) MarkProcessed(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, processedBy uuid.UUID, processedAt time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = $1, processed_by = $2, processed_at = $3
		WHERE id = $4 AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, query, status, processedBy, processedAt, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
