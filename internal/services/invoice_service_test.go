package services

import (
	"context"
	"testing"
	"time"

	"otomart/internal/common"
	"otomart/internal/config"
	"otomart/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceTestSuite struct {
	suite.Suite
	db              pgxmock.PgxPoolIface
	repo            *MockInvoiceRepository
	planSvc         *MockPlanService
	subscriptionSvc *MockSubscriptionService
	service         InvoiceService
	tenantID        uuid.UUID
	invoiceID       uuid.UUID
	ctx             context.Context
}

func (suite *InvoiceServiceTestSuite) SetupTest() {
	db, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.db = db

	suite.repo = &MockInvoiceRepository{}
	suite.planSvc = &MockPlanService{}
	suite.subscriptionSvc = &MockSubscriptionService{}
	suite.service = NewInvoiceService(db, suite.repo, suite.planSvc, suite.subscriptionSvc, config.DefaultBillingPolicy())
	suite.tenantID = uuid.New()
	suite.invoiceID = uuid.New()
	suite.ctx = context.Background()

	suite.repo.Test(suite.T())
	suite.planSvc.Test(suite.T())
	suite.subscriptionSvc.Test(suite.T())
}

func (suite *InvoiceServiceTestSuite) TearDownTest() {
	suite.repo.AssertExpectations(suite.T())
	suite.planSvc.AssertExpectations(suite.T())
	suite.subscriptionSvc.AssertExpectations(suite.T())
	assert.NoError(suite.T(), suite.db.ExpectationsWereMet())
	suite.db.Close()
}

func TestInvoiceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceTestSuite))
}

func (suite *InvoiceServiceTestSuite) basicPlan() *models.Plan {
	return &models.Plan{
		ID:                uuid.New(),
		Tier:              "BASIC",
		Name:              "Basic",
		MonthlyPrice:      299000,
		YearlyDiscountPct: 10,
	}
}

func (suite *InvoiceServiceTestSuite) invoice(status models.InvoiceStatus) *models.Invoice {
	return &models.Invoice{
		ID:            suite.invoiceID,
		TenantID:      suite.tenantID,
		InvoiceNumber: "INV-abcd1234-2026-08-000001",
		PlanTier:      "BASIC",
		Period:        models.PeriodMonthly,
		Amount:        299000,
		Status:        status,
		DueDate:       time.Now().AddDate(0, 0, 7),
	}
}

func (suite *InvoiceServiceTestSuite) activeTenant() *models.Tenant {
	return &models.Tenant{
		ID:                 suite.tenantID,
		PlanTier:           "FREE",
		SubscriptionStatus: models.SubscriptionActive,
	}
}

// expectOwnTx sets up the begin/advisory-lock pair Subscribe opens so
// concurrent subscribes for one tenant serialize.
func (suite *InvoiceServiceTestSuite) expectOwnTx() {
	suite.db.ExpectBegin()
	suite.db.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(suite.tenantID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func (suite *InvoiceServiceTestSuite) TestSubscribe_CreatesPendingInvoice() {
	suite.subscriptionSvc.On("Get", suite.ctx, suite.tenantID).Return(suite.activeTenant(), nil)
	suite.planSvc.On("GetPlan", suite.ctx, "BASIC").Return(suite.basicPlan(), nil)
	suite.expectOwnTx()
	suite.repo.On("FindOpen", suite.ctx, suite.tenantID).Return(nil, nil)
	suite.repo.On("GenerateInvoiceNumber", suite.ctx, suite.tenantID, mock.AnythingOfType("time.Time")).Return("INV-abcd1234-2026-08-000001", nil)
	suite.repo.On("Create", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.db.ExpectCommit()

	invoice, err := suite.service.Subscribe(suite.ctx, suite.tenantID, "BASIC", models.PeriodMonthly)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoicePending, invoice.Status)
	assert.Equal(suite.T(), float64(299000), invoice.Amount)
	assert.WithinDuration(suite.T(), time.Now().AddDate(0, 0, 7), invoice.DueDate, time.Minute)
}

func (suite *InvoiceServiceTestSuite) TestSubscribe_YearlyAppliesDiscount() {
	suite.subscriptionSvc.On("Get", suite.ctx, suite.tenantID).Return(suite.activeTenant(), nil)
	suite.planSvc.On("GetPlan", suite.ctx, "BASIC").Return(suite.basicPlan(), nil)
	suite.expectOwnTx()
	suite.repo.On("FindOpen", suite.ctx, suite.tenantID).Return(nil, nil)
	suite.repo.On("GenerateInvoiceNumber", suite.ctx, suite.tenantID, mock.AnythingOfType("time.Time")).Return("INV-abcd1234-2026-08-000002", nil)
	suite.repo.On("Create", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.db.ExpectCommit()

	invoice, err := suite.service.Subscribe(suite.ctx, suite.tenantID, "BASIC", models.PeriodYearly)
	assert.NoError(suite.T(), err)
	// 299000 * 12 months at a 10% discount.
	assert.InDelta(suite.T(), 3229200, invoice.Amount, 0.01)
}

func (suite *InvoiceServiceTestSuite) TestSubscribe_ReusesMatchingOpenInvoice() {
	open := suite.invoice(models.InvoicePending)
	suite.subscriptionSvc.On("Get", suite.ctx, suite.tenantID).Return(suite.activeTenant(), nil)
	suite.planSvc.On("GetPlan", suite.ctx, "BASIC").Return(suite.basicPlan(), nil)
	suite.expectOwnTx()
	suite.repo.On("FindOpen", suite.ctx, suite.tenantID).Return(open, nil)
	suite.db.ExpectCommit()

	invoice, err := suite.service.Subscribe(suite.ctx, suite.tenantID, "BASIC", models.PeriodMonthly)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), open.ID, invoice.ID)
	suite.repo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *InvoiceServiceTestSuite) TestSubscribe_ConflictingOpenInvoiceRejected() {
	open := suite.invoice(models.InvoicePending)
	open.PlanTier = "PRO"
	suite.subscriptionSvc.On("Get", suite.ctx, suite.tenantID).Return(suite.activeTenant(), nil)
	suite.planSvc.On("GetPlan", suite.ctx, "BASIC").Return(suite.basicPlan(), nil)
	suite.expectOwnTx()
	suite.repo.On("FindOpen", suite.ctx, suite.tenantID).Return(open, nil)
	suite.db.ExpectRollback()

	_, err := suite.service.Subscribe(suite.ctx, suite.tenantID, "BASIC", models.PeriodMonthly)
	assert.ErrorIs(suite.T(), err, common.ErrValidation)
}

func (suite *InvoiceServiceTestSuite) TestSubscribe_CancelledTenantRejected() {
	tenant := suite.activeTenant()
	tenant.SubscriptionStatus = models.SubscriptionCancelled
	suite.subscriptionSvc.On("Get", suite.ctx, suite.tenantID).Return(tenant, nil)

	_, err := suite.service.Subscribe(suite.ctx, suite.tenantID, "BASIC", models.PeriodMonthly)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidTransition)
}

func (suite *InvoiceServiceTestSuite) TestSubscribe_InvalidPeriod() {
	_, err := suite.service.Subscribe(suite.ctx, suite.tenantID, "BASIC", models.BillingPeriod("weekly"))
	assert.ErrorIs(suite.T(), err, common.ErrValidation)
}

func (suite *InvoiceServiceTestSuite) TestRenewTx_CreatesNextPeriodInvoice() {
	suite.db.ExpectBegin()
	tx, err := suite.db.Begin(suite.ctx)
	assert.NoError(suite.T(), err)

	tenant := suite.activeTenant()
	tenant.PlanTier = "BASIC"
	tenant.BillingPeriod = models.PeriodYearly
	suite.planSvc.On("GetPlan", suite.ctx, "BASIC").Return(suite.basicPlan(), nil)
	suite.repo.On("GenerateInvoiceNumber", suite.ctx, suite.tenantID, mock.AnythingOfType("time.Time")).Return("INV-abcd1234-2026-09-000003", nil)
	suite.repo.On("Create", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)

	invoice, err := suite.service.RenewTx(suite.ctx, tx, tenant)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoicePending, invoice.Status)
	assert.Equal(suite.T(), models.PeriodYearly, invoice.Period)
	assert.InDelta(suite.T(), 3229200, invoice.Amount, 0.01)
	assert.WithinDuration(suite.T(), time.Now().AddDate(0, 0, 7), invoice.DueDate, time.Minute)
}

func (suite *InvoiceServiceTestSuite) TestRenewTx_DefaultsToMonthlyPeriod() {
	suite.db.ExpectBegin()
	tx, err := suite.db.Begin(suite.ctx)
	assert.NoError(suite.T(), err)

	tenant := suite.activeTenant()
	tenant.PlanTier = "BASIC"
	suite.planSvc.On("GetPlan", suite.ctx, "BASIC").Return(suite.basicPlan(), nil)
	suite.repo.On("GenerateInvoiceNumber", suite.ctx, suite.tenantID, mock.AnythingOfType("time.Time")).Return("INV-abcd1234-2026-09-000004", nil)
	suite.repo.On("Create", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)

	invoice, err := suite.service.RenewTx(suite.ctx, tx, tenant)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PeriodMonthly, invoice.Period)
	assert.Equal(suite.T(), float64(299000), invoice.Amount)
}

func (suite *InvoiceServiceTestSuite) TestUploadProof_FromPending() {
	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoicePending), nil)
	suite.repo.On("Update", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.db.ExpectCommit()

	invoice, err := suite.service.UploadProof(suite.ctx, suite.tenantID, suite.invoiceID, "tenant/invoice/proof.jpg")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceVerifying, invoice.Status)
	if assert.NotNil(suite.T(), invoice.PaymentProofURL) {
		assert.Equal(suite.T(), "tenant/invoice/proof.jpg", *invoice.PaymentProofURL)
	}
}

func (suite *InvoiceServiceTestSuite) TestUploadProof_ReplacesWhileVerifying() {
	previous := "tenant/invoice/old.jpg"
	invoice := suite.invoice(models.InvoiceVerifying)
	invoice.PaymentProofURL = &previous

	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(invoice, nil)
	suite.repo.On("Update", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.db.ExpectCommit()

	updated, err := suite.service.UploadProof(suite.ctx, suite.tenantID, suite.invoiceID, "tenant/invoice/new.jpg")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceVerifying, updated.Status)
	assert.Equal(suite.T(), "tenant/invoice/new.jpg", *updated.PaymentProofURL)
}

func (suite *InvoiceServiceTestSuite) TestUploadProof_PaidInvoiceRejected() {
	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoicePaid), nil)
	suite.db.ExpectRollback()

	_, err := suite.service.UploadProof(suite.ctx, suite.tenantID, suite.invoiceID, "tenant/invoice/proof.jpg")
	assert.ErrorIs(suite.T(), err, common.ErrInvalidInvoiceState)
}

func (suite *InvoiceServiceTestSuite) TestUploadProof_ForeignInvoiceHidden() {
	invoice := suite.invoice(models.InvoicePending)
	invoice.TenantID = uuid.New()

	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(invoice, nil)
	suite.db.ExpectRollback()

	_, err := suite.service.UploadProof(suite.ctx, suite.tenantID, suite.invoiceID, "tenant/invoice/proof.jpg")
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InvoiceServiceTestSuite) TestVerify_ApproveActivatesSubscription() {
	verifier := uuid.New()

	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoiceVerifying), nil)
	suite.repo.On("Update", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.subscriptionSvc.On("ActivateTx", suite.ctx, mock.Anything, suite.tenantID, models.PeriodMonthly, verifier.String()).Return(nil)
	suite.db.ExpectCommit()

	invoice, err := suite.service.Verify(suite.ctx, suite.invoiceID, true, verifier)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoicePaid, invoice.Status)
	assert.NotNil(suite.T(), invoice.PaidAt)
	assert.Equal(suite.T(), verifier, *invoice.VerifiedBy)
}

func (suite *InvoiceServiceTestSuite) TestVerify_RejectAllowsRetry() {
	verifier := uuid.New()

	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoiceVerifying), nil)
	suite.repo.On("Update", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.db.ExpectCommit()

	invoice, err := suite.service.Verify(suite.ctx, suite.invoiceID, false, verifier)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InvoiceRejected, invoice.Status)
	assert.Nil(suite.T(), invoice.PaidAt)
	suite.subscriptionSvc.AssertNotCalled(suite.T(), "ActivateTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *InvoiceServiceTestSuite) TestVerify_SecondCallFails() {
	verifier := uuid.New()

	suite.db.ExpectBegin()
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoicePaid), nil)
	suite.db.ExpectRollback()

	_, err := suite.service.Verify(suite.ctx, suite.invoiceID, true, verifier)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidInvoiceState)
}

func (suite *InvoiceServiceTestSuite) TestForceMarkPaidTx_SettlesOpenInvoice() {
	actor := uuid.New()
	suite.db.ExpectBegin()
	tx, err := suite.db.Begin(suite.ctx)
	assert.NoError(suite.T(), err)

	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoiceOverdue), nil)
	suite.repo.On("Update", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil).Run(func(args mock.Arguments) {
		invoice := args.Get(1).(*models.Invoice)
		assert.Equal(suite.T(), models.InvoicePaid, invoice.Status)
	})
	suite.subscriptionSvc.On("ActivateTx", suite.ctx, tx, suite.tenantID, models.PeriodMonthly, actor.String()).Return(nil)

	assert.NoError(suite.T(), suite.service.ForceMarkPaidTx(suite.ctx, tx, suite.invoiceID, actor))
}

func (suite *InvoiceServiceTestSuite) TestForceMarkPaidTx_SettledInvoiceRejected() {
	actor := uuid.New()
	suite.db.ExpectBegin()
	tx, err := suite.db.Begin(suite.ctx)
	assert.NoError(suite.T(), err)

	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(suite.invoice(models.InvoicePaid), nil)

	err = suite.service.ForceMarkPaidTx(suite.ctx, tx, suite.invoiceID, actor)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidInvoiceState)
}

func (suite *InvoiceServiceTestSuite) TestExtendDueDateTx_OverdueBecomesPending() {
	suite.db.ExpectBegin()
	tx, err := suite.db.Begin(suite.ctx)
	assert.NoError(suite.T(), err)

	invoice := suite.invoice(models.InvoiceOverdue)
	originalDue := invoice.DueDate
	suite.repo.On("GetForUpdate", suite.ctx, suite.invoiceID).Return(invoice, nil)
	suite.repo.On("Update", suite.ctx, mock.AnythingOfType("*models.Invoice")).Return(nil).Run(func(args mock.Arguments) {
		updated := args.Get(1).(*models.Invoice)
		assert.Equal(suite.T(), models.InvoicePending, updated.Status)
		assert.Equal(suite.T(), originalDue.AddDate(0, 0, 10), updated.DueDate)
	})

	assert.NoError(suite.T(), suite.service.ExtendDueDateTx(suite.ctx, tx, suite.invoiceID, 10))
}

func (suite *InvoiceServiceTestSuite) TestExtendDueDateTx_RequiresPositiveDays() {
	suite.db.ExpectBegin()
	tx, err := suite.db.Begin(suite.ctx)
	assert.NoError(suite.T(), err)

	err = suite.service.ExtendDueDateTx(suite.ctx, tx, suite.invoiceID, 0)
	assert.ErrorIs(suite.T(), err, common.ErrValidation)
}
