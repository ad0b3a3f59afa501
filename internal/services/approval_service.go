package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"otomart/internal/common"
	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApprovalService is the request/approve/reject queue gating privileged
// actions requested by dealership staff. The stored payload is applied
// exactly once, inside the same transaction that marks the request
// APPROVED; a failed handler rolls the decision back.
type ApprovalService interface {
	Request(ctx context.Context, tenantID, requestedBy uuid.UUID, actionType models.ActionType, payload json.RawMessage) (*models.ApprovalRequest, error)
	Decide(ctx context.Context, requestID uuid.UUID, approve bool, decidedBy uuid.UUID) (*models.ApprovalRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (*models.ApprovalRequest, error)
	List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRequest, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.ApprovalRequest, error)
}

type approvalService struct {
	db              repositories.TxDB
	approvalRepo    repositories.ApprovalRepository
	planSvc         PlanService
	invoiceSvc      InvoiceService
	subscriptionSvc SubscriptionService
}

func NewApprovalService(db repositories.TxDB, approvalRepo repositories.ApprovalRepository, planSvc PlanService, invoiceSvc InvoiceService, subscriptionSvc SubscriptionService) ApprovalService {
	return &approvalService{
		db:              db,
		approvalRepo:    approvalRepo,
		planSvc:         planSvc,
		invoiceSvc:      invoiceSvc,
		subscriptionSvc: subscriptionSvc,
	}
}

func (s *approvalService) Request(ctx context.Context, tenantID, requestedBy uuid.UUID, actionType models.ActionType, payload json.RawMessage) (*models.ApprovalRequest, error) {
	if !actionType.Valid() {
		return nil, common.ValidationError("type", "is not a known action type")
	}

	request := &models.ApprovalRequest{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Type:        actionType,
		Status:      models.ApprovalPending,
		Payload:     payload,
		RequestedBy: requestedBy,
		RequestedAt: time.Now(),
	}
	// Reject malformed payloads at request time, not at decision time.
	if _, err := request.DecodePayload(); err != nil {
		return nil, common.ValidationError("payload", fmt.Sprintf("does not match action type %s", actionType))
	}

	if err := s.approvalRepo.Create(ctx, request); err != nil {
		return nil, err
	}
	log.Printf("Approval request %s created: %s for tenant %s (requested_by=%s)", request.ID, actionType, tenantID, requestedBy)
	return request, nil
}

func (s *approvalService) Decide(ctx context.Context, requestID uuid.UUID, approve bool, decidedBy uuid.UUID) (*models.ApprovalRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	repo := s.approvalRepo.WithTx(tx)
	request, err := repo.GetForUpdate(ctx, requestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("approval request")
	}
	if err != nil {
		return nil, err
	}
	if request.Status != models.ApprovalPending {
		log.Printf("Approval decision rejected for request %s: already %s (actor=%s)", requestID, request.Status, decidedBy)
		return nil, fmt.Errorf("%w: request is %s", common.ErrAlreadyProcessed, request.Status)
	}

	now := time.Now()
	status := models.ApprovalRejected
	if approve {
		status = models.ApprovalApproved
	}

	changed, err := repo.MarkProcessed(ctx, requestID, status, decidedBy, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: request was decided concurrently", common.ErrAlreadyProcessed)
	}

	if approve {
		if err := s.execute(ctx, tx, request, decidedBy); err != nil {
			// Rollback leaves the request PENDING for another attempt.
			log.Printf("Approval execution failed for request %s (%s): %v", requestID, request.Type, err)
			return nil, fmt.Errorf("%w: %v", common.ErrApprovalExecution, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	request.Status = status
	request.ProcessedAt = &now
	request.ProcessedBy = &decidedBy
	log.Printf("Approval request %s decided: %s (actor=%s)", requestID, status, decidedBy)
	return request, nil
}

// execute dispatches the typed payload to its handler inside the
// decision transaction.
func (s *approvalService) execute(ctx context.Context, tx pgx.Tx, request *models.ApprovalRequest, actor uuid.UUID) error {
	payload, err := request.DecodePayload()
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case models.PlanChangePayload:
		if _, err := s.planSvc.GetPlan(ctx, p.NewTier); err != nil {
			return err
		}
		return s.subscriptionSvc.ChangePlanTx(ctx, tx, request.TenantID, p.NewTier, actor.String())
	case models.BillingExtendPayload:
		return s.invoiceSvc.ExtendDueDateTx(ctx, tx, p.InvoiceID, p.ExtendDays)
	case models.InvoiceActionPayload:
		return s.invoiceSvc.ForceMarkPaidTx(ctx, tx, p.InvoiceID, actor)
	case models.TenantSuspendPayload:
		return s.subscriptionSvc.SuspendTx(ctx, tx, request.TenantID, actor.String())
	}
	return fmt.Errorf("no handler for action type %s", request.Type)
}

func (s *approvalService) Get(ctx context.Context, requestID uuid.UUID) (*models.ApprovalRequest, error) {
	request, err := s.approvalRepo.GetByID(ctx, requestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("approval request")
	}
	return request, err
}

func (s *approvalService) List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRequest, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.approvalRepo.List(ctx, status, limit, offset)
}

func (s *approvalService) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.ApprovalRequest, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.approvalRepo.ListByTenant(ctx, tenantID, limit, offset)
}
