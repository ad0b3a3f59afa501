package services

import (
	"context"
	"encoding/json"
	"time"

	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// Repository and service fakes shared by the service test suites.
// WithTx returns the mock itself so transaction-shaped code paths can
// be exercised against a pgxmock pool.

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) UpdateSubscription(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTenantRepository) WithTx(tx pgx.Tx) repositories.TenantRepository {
	return m
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) GetByTier(ctx context.Context, tier string) (*models.Plan, error) {
	args := m.Called(ctx, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanRepository) List(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockPlanRepository) Update(ctx context.Context, plan *models.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) Seed(ctx context.Context, plans []*models.Plan) error {
	args := m.Called(ctx, plans)
	return args.Error(0)
}

func (m *MockPlanRepository) WithTx(tx pgx.Tx) repositories.PlanRepository {
	return m
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOpen(ctx context.Context, tenantID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, issuedDate time.Time) (string, error) {
	args := m.Called(ctx, tenantID, issuedDate)
	return args.String(0), args.Error(1)
}

func (m *MockInvoiceRepository) WithTx(tx pgx.Tx) repositories.InvoiceRepository {
	return m
}

type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) List(ctx context.Context, status *models.ApprovalStatus, limit, offset int) ([]*models.ApprovalRequest, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, processedBy uuid.UUID, processedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, status, processedBy, processedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockApprovalRepository) WithTx(tx pgx.Tx) repositories.ApprovalRepository {
	return m
}

type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) Count(ctx context.Context, tenantID uuid.UUID, resource models.Resource) (int, error) {
	args := m.Called(ctx, tenantID, resource)
	return args.Int(0), args.Error(1)
}

func (m *MockUsageRepository) CountAll(ctx context.Context, tenantID uuid.UUID) (map[models.Resource]int, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Resource]int), args.Error(1)
}

func (m *MockUsageRepository) WithTx(tx pgx.Tx) repositories.UsageRepository {
	return m
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockCacheService) SetPlans(ctx context.Context, plans []*models.Plan, ttl time.Duration) error {
	args := m.Called(ctx, plans, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidatePlans(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) GetBillingProfile(ctx context.Context, tenantID uuid.UUID) (*models.BillingProfile, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BillingProfile), args.Error(1)
}

func (m *MockCacheService) SetBillingProfile(ctx context.Context, tenantID uuid.UUID, profile *models.BillingProfile, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, profile, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) GetPlan(ctx context.Context, tier string) (*models.Plan, error) {
	args := m.Called(ctx, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanService) GetPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockPlanService) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanService) SeedDefaults(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) Provision(ctx context.Context, name, subdomain string) (*models.Tenant, error) {
	args := m.Called(ctx, name, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockSubscriptionService) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockSubscriptionService) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockSubscriptionService) ActivateTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, period models.BillingPeriod, actor string) error {
	args := m.Called(ctx, tx, tenantID, period, actor)
	return args.Error(0)
}

func (m *MockSubscriptionService) ExpireTrialTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	args := m.Called(ctx, tx, tenantID)
	return args.Error(0)
}

func (m *MockSubscriptionService) MarkPastDueTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	args := m.Called(ctx, tx, tenantID)
	return args.Error(0)
}

func (m *MockSubscriptionService) SuspendTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, actor string) error {
	args := m.Called(ctx, tx, tenantID, actor)
	return args.Error(0)
}

func (m *MockSubscriptionService) ChangePlanTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, newTier string, actor string) error {
	args := m.Called(ctx, tx, tenantID, newTier, actor)
	return args.Error(0)
}

func (m *MockSubscriptionService) Suspend(ctx context.Context, tenantID uuid.UUID, actor string) error {
	args := m.Called(ctx, tenantID, actor)
	return args.Error(0)
}

func (m *MockSubscriptionService) Reinstate(ctx context.Context, tenantID uuid.UUID, actor string) error {
	args := m.Called(ctx, tenantID, actor)
	return args.Error(0)
}

func (m *MockSubscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID, actor string) error {
	args := m.Called(ctx, tenantID, actor)
	return args.Error(0)
}

func (m *MockSubscriptionService) Purge(ctx context.Context, tenantID uuid.UUID, confirmed bool, actor string) error {
	args := m.Called(ctx, tenantID, confirmed, actor)
	return args.Error(0)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Subscribe(ctx context.Context, tenantID uuid.UUID, tier string, period models.BillingPeriod) (*models.Invoice, error) {
	args := m.Called(ctx, tenantID, tier, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetForTenant(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UploadProof(ctx context.Context, tenantID, invoiceID uuid.UUID, proofURL string) (*models.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID, proofURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) Verify(ctx context.Context, invoiceID uuid.UUID, approve bool, verifiedBy uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID, approve, verifiedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) RenewTx(ctx context.Context, tx pgx.Tx, tenant *models.Tenant) (*models.Invoice, error) {
	args := m.Called(ctx, tx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) ForceMarkPaidTx(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, actor uuid.UUID) error {
	args := m.Called(ctx, tx, invoiceID, actor)
	return args.Error(0)
}

func (m *MockInvoiceService) ExtendDueDateTx(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, days int) error {
	args := m.Called(ctx, tx, invoiceID, days)
	return args.Error(0)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
