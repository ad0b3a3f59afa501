package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"otomart/internal/caching"
	"otomart/internal/common"
	"otomart/internal/config"
	"otomart/internal/models"
	"otomart/internal/repositories"
	"otomart/internal/services"

	"github.com/labstack/echo/v4"
)

// BillingHandlers serves the tenant-facing billing API: subscribing,
// invoices, payment proofs, the billing profile, and staff approval
// requests.
type BillingHandlers struct {
	invoiceSvc      services.InvoiceService
	subscriptionSvc services.SubscriptionService
	planSvc         services.PlanService
	approvalSvc     services.ApprovalService
	paymentSvc      services.PaymentMethodService
	quotaSvc        services.QuotaService
	proofStorage    services.ProofStorageService
	usageRepo       repositories.UsageRepository
	cacheSvc        caching.CacheService
	policy          config.BillingPolicy
}

const profileCacheTTL = 60 * time.Second

func NewBillingHandlers(
	invoiceSvc services.InvoiceService,
	subscriptionSvc services.SubscriptionService,
	planSvc services.PlanService,
	approvalSvc services.ApprovalService,
	paymentSvc services.PaymentMethodService,
	quotaSvc services.QuotaService,
	proofStorage services.ProofStorageService,
	usageRepo repositories.UsageRepository,
	cacheSvc caching.CacheService,
	policy config.BillingPolicy,
) *BillingHandlers {
	return &BillingHandlers{
		invoiceSvc:      invoiceSvc,
		subscriptionSvc: subscriptionSvc,
		planSvc:         planSvc,
		approvalSvc:     approvalSvc,
		paymentSvc:      paymentSvc,
		quotaSvc:        quotaSvc,
		proofStorage:    proofStorage,
		usageRepo:       usageRepo,
		cacheSvc:        cacheSvc,
		policy:          policy,
	}
}

func paginationParams(c echo.Context) (int, int) {
	limit, offset := 50, 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

// Subscribe handles POST /billing/subscribe
func (h *BillingHandlers) Subscribe(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	var req struct {
		PlanTier string `json:"plan_tier"`
		Period   string `json:"period"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Period == "" {
		req.Period = string(models.PeriodMonthly)
	}

	invoice, err := h.invoiceSvc.Subscribe(ctx, tenantID, req.PlanTier, models.BillingPeriod(req.Period))
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Invoice ready for payment",
		"invoice": invoice,
	})
}

// ListInvoices handles GET /billing/invoices
func (h *BillingHandlers) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	limit, offset := paginationParams(c)
	invoices, err := h.invoiceSvc.List(ctx, tenantID, limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetInvoice handles GET /billing/invoices/:id. When a proof has been
// uploaded the response carries a short-lived download link instead of
// the raw object key.
func (h *BillingHandlers) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice id")
	if err != nil {
		return common.SendError(c, err)
	}

	invoice, err := h.invoiceSvc.GetForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}

	response := map[string]interface{}{"invoice": invoice}
	if invoice.PaymentProofURL != nil && *invoice.PaymentProofURL != "" {
		url, err := h.proofStorage.GetPresignedURL(*invoice.PaymentProofURL, h.policy.ProofURLTTL)
		if err != nil {
			log.Printf("Failed to presign proof for invoice %s: %v", invoiceID, err)
		} else {
			response["proof_download_url"] = url
		}
	}
	return c.JSON(http.StatusOK, response)
}

// UploadPaymentProof handles POST /billing/invoices/:id/payment-proof.
// The file lands in object storage first; only the resolved object key
// enters the invoice transaction.
func (h *BillingHandlers) UploadPaymentProof(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice id")
	if err != nil {
		return common.SendError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Proof file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read proof file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey, err := h.proofStorage.UploadProof(ctx, tenantID, invoiceID, file, fileHeader.Size, contentType)
	if err != nil {
		log.Printf("Proof upload to storage failed for invoice %s: %v", invoiceID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not store proof file")
	}

	invoice, err := h.invoiceSvc.UploadProof(ctx, tenantID, invoiceID, objectKey)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Proof received, awaiting verification",
		"invoice": invoice,
	})
}

// GetProfile handles GET /billing/profile
func (h *BillingHandlers) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	if cached, err := h.cacheSvc.GetBillingProfile(ctx, tenantID); err == nil && cached != nil {
		return c.JSON(http.StatusOK, cached)
	}

	tenant, err := h.subscriptionSvc.Get(ctx, tenantID)
	if err != nil {
		return common.SendError(c, err)
	}
	plan, err := h.planSvc.GetPlan(ctx, tenant.PlanTier)
	if err != nil {
		return common.SendError(c, err)
	}
	usage, err := h.usageRepo.CountAll(ctx, tenantID)
	if err != nil {
		return common.SendError(c, err)
	}

	profile := &models.BillingProfile{Tenant: tenant, Plan: plan, Usage: usage}
	if err := h.cacheSvc.SetBillingProfile(ctx, tenantID, profile, profileCacheTTL); err != nil {
		log.Printf("Failed to cache billing profile for tenant %s: %v", tenantID, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// ListPlans handles GET /billing/plans
func (h *BillingHandlers) ListPlans(c echo.Context) error {
	plans, err := h.planSvc.ListPlans(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"plans": plans})
}

// ListPaymentMethods handles GET /billing/payment-methods
func (h *BillingHandlers) ListPaymentMethods(c echo.Context) error {
	methods, err := h.paymentSvc.ListActive(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payment_methods": methods})
}

// CheckQuota handles GET /billing/quota/:resource. Dealership services
// call this before creating resources; a denial comes back as 403 with
// the limit detail.
func (h *BillingHandlers) CheckQuota(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	resource := models.Resource(c.Param("resource"))
	count := 1
	if countParam := c.QueryParam("count"); countParam != "" {
		n, err := strconv.Atoi(countParam)
		if err != nil || n <= 0 {
			return common.SendError(c, common.ValidationError("count", "must be a positive integer"))
		}
		count = n
	}

	if err := h.quotaSvc.CheckQuota(ctx, tenantID, resource, count); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"allowed":  true,
		"resource": resource,
		"count":    count,
	})
}

// RequestApproval handles POST /billing/approvals
func (h *BillingHandlers) RequestApproval(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	request, err := h.approvalSvc.Request(ctx, tenantID, userID, models.ActionType(req.Type), req.Payload)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Approval request submitted",
		"approval": request,
	})
}

// ListApprovals handles GET /billing/approvals
func (h *BillingHandlers) ListApprovals(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}

	limit, offset := paginationParams(c)
	requests, err := h.approvalSvc.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"approvals": requests,
		"limit":     limit,
		"offset":    offset,
	})
}
