package services

import (
	"context"
	"errors"
	"time"

	"otomart/internal/common"
	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentMethodService manages the platform bank/e-wallet accounts
// tenants transfer to during manual payment.
type PaymentMethodService interface {
	Create(ctx context.Context, method *models.PaymentMethod) error
	Get(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
	Update(ctx context.Context, method *models.PaymentMethod) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActive is the tenant-facing read shown at payment time.
	ListActive(ctx context.Context) ([]*models.PaymentMethod, error)
	ListAll(ctx context.Context) ([]*models.PaymentMethod, error)
}

type paymentMethodService struct {
	methodRepo repositories.PaymentMethodRepository
}

func NewPaymentMethodService(methodRepo repositories.PaymentMethodRepository) PaymentMethodService {
	return &paymentMethodService{methodRepo: methodRepo}
}

func (s *paymentMethodService) validate(method *models.PaymentMethod) error {
	if err := common.ValidateRequiredString(method.Provider, "provider"); err != nil {
		return err
	}
	if err := common.ValidateRequiredString(method.AccountName, "account_name"); err != nil {
		return err
	}
	return common.ValidateRequiredString(method.AccountNumber, "account_number")
}

func (s *paymentMethodService) Create(ctx context.Context, method *models.PaymentMethod) error {
	if err := s.validate(method); err != nil {
		return err
	}
	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}
	method.CreatedAt = time.Now()
	method.UpdatedAt = method.CreatedAt
	return s.methodRepo.Create(ctx, method)
}

func (s *paymentMethodService) Get(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	method, err := s.methodRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("payment method")
	}
	return method, err
}

func (s *paymentMethodService) Update(ctx context.Context, method *models.PaymentMethod) error {
	if err := s.validate(method); err != nil {
		return err
	}
	if _, err := s.Get(ctx, method.ID); err != nil {
		return err
	}
	return s.methodRepo.Update(ctx, method)
}

func (s *paymentMethodService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.methodRepo.Delete(ctx, id)
}

func (s *paymentMethodService) ListActive(ctx context.Context) ([]*models.PaymentMethod, error) {
	return s.methodRepo.List(ctx, true)
}

func (s *paymentMethodService) ListAll(ctx context.Context) ([]*models.PaymentMethod, error) {
	return s.methodRepo.List(ctx, false)
}
