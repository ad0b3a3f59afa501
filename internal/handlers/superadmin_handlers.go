package handlers

import (
	"log"
	"net/http"

	"otomart/internal/common"
	"otomart/internal/config"
	"otomart/internal/jobs/background"
	"otomart/internal/models"
	"otomart/internal/services"

	"github.com/labstack/echo/v4"
)

// SuperadminHandlers serves the operator console: invoice verification,
// approval decisions, plan management, tenant administration, and the
// on-demand lifecycle run.
type SuperadminHandlers struct {
	invoiceSvc      services.InvoiceService
	subscriptionSvc services.SubscriptionService
	planSvc         services.PlanService
	approvalSvc     services.ApprovalService
	paymentSvc      services.PaymentMethodService
	proofStorage    services.ProofStorageService
	scheduler       *background.LifecycleScheduler
	policy          config.BillingPolicy
}

func NewSuperadminHandlers(
	invoiceSvc services.InvoiceService,
	subscriptionSvc services.SubscriptionService,
	planSvc services.PlanService,
	approvalSvc services.ApprovalService,
	paymentSvc services.PaymentMethodService,
	proofStorage services.ProofStorageService,
	scheduler *background.LifecycleScheduler,
	policy config.BillingPolicy,
) *SuperadminHandlers {
	return &SuperadminHandlers{
		invoiceSvc:      invoiceSvc,
		subscriptionSvc: subscriptionSvc,
		planSvc:         planSvc,
		approvalSvc:     approvalSvc,
		paymentSvc:      paymentSvc,
		proofStorage:    proofStorage,
		scheduler:       scheduler,
		policy:          policy,
	}
}

// VerifyInvoice handles PATCH /superadmin/invoices/:id/verify
func (h *SuperadminHandlers) VerifyInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice id")
	if err != nil {
		return common.SendError(c, err)
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Action != "VERIFY" && req.Action != "REJECT" {
		return common.SendError(c, common.ValidationError("action", "must be VERIFY or REJECT"))
	}
	approve := req.Action == "VERIFY"

	invoice, err := h.invoiceSvc.Verify(ctx, invoiceID, approve, userID)
	if err != nil {
		return common.SendError(c, err)
	}

	message := "Invoice rejected"
	if approve {
		message = "Invoice verified and subscription activated"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": message,
		"invoice": invoice,
	})
}

// GetInvoiceProof handles GET /superadmin/invoices/:id/payment-proof.
// Reviewers fetch the uploaded proof through a short-lived link.
func (h *SuperadminHandlers) GetInvoiceProof(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice id")
	if err != nil {
		return common.SendError(c, err)
	}

	invoice, err := h.invoiceSvc.Get(ctx, invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}
	if invoice.PaymentProofURL == nil || *invoice.PaymentProofURL == "" {
		return common.SendError(c, common.NotFoundError("payment proof"))
	}

	url, err := h.proofStorage.GetPresignedURL(*invoice.PaymentProofURL, h.policy.ProofURLTTL)
	if err != nil {
		log.Printf("Failed to presign proof for invoice %s: %v", invoiceID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not generate proof link")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"proof_download_url": url,
		"expires_in_seconds": int(h.policy.ProofURLTTL.Seconds()),
	})
}

// ListApprovals handles GET /superadmin/approvals
func (h *SuperadminHandlers) ListApprovals(c echo.Context) error {
	ctx := c.Request().Context()

	var status *models.ApprovalStatus
	if s := c.QueryParam("status"); s != "" {
		st := models.ApprovalStatus(s)
		status = &st
	}

	limit, offset := paginationParams(c)
	requests, err := h.approvalSvc.List(ctx, status, limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"approvals": requests,
		"limit":     limit,
		"offset":    offset,
	})
}

// DecideApproval handles PATCH /superadmin/approvals/:id
func (h *SuperadminHandlers) DecideApproval(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requestID, err := common.ValidateUUID(c.Param("id"), "approval id")
	if err != nil {
		return common.SendError(c, err)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Status != string(models.ApprovalApproved) && req.Status != string(models.ApprovalRejected) {
		return common.SendError(c, common.ValidationError("status", "must be APPROVED or REJECTED"))
	}
	approve := req.Status == string(models.ApprovalApproved)

	request, err := h.approvalSvc.Decide(ctx, requestID, approve, userID)
	if err != nil {
		return common.SendError(c, err)
	}

	message := "Request rejected"
	if approve {
		message = "Request approved and applied"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  message,
		"approval": request,
	})
}

// ListPlans handles GET /superadmin/plans
func (h *SuperadminHandlers) ListPlans(c echo.Context) error {
	plans, err := h.planSvc.ListPlans(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"plans": plans})
}

// UpdatePlan handles PATCH /superadmin/plans/:id
func (h *SuperadminHandlers) UpdatePlan(c echo.Context) error {
	ctx := c.Request().Context()

	planID, err := common.ValidateUUID(c.Param("id"), "plan id")
	if err != nil {
		return common.SendError(c, err)
	}

	plan, err := h.planSvc.GetPlanByID(ctx, planID)
	if err != nil {
		return common.SendError(c, err)
	}

	var req struct {
		MonthlyPrice      *float64           `json:"monthly_price"`
		YearlyDiscountPct *float64           `json:"yearly_discount_pct"`
		Limits            *models.PlanLimits `json:"limits"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.MonthlyPrice != nil {
		plan.MonthlyPrice = *req.MonthlyPrice
	}
	if req.YearlyDiscountPct != nil {
		plan.YearlyDiscountPct = *req.YearlyDiscountPct
	}
	if req.Limits != nil {
		plan.Limits = *req.Limits
	}

	if err := h.planSvc.UpdatePlan(ctx, plan); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Plan updated",
		"plan":    plan,
	})
}

// CreateTenant handles POST /superadmin/tenants. New dealerships start
// on the free tier with a trial window.
func (h *SuperadminHandlers) CreateTenant(c echo.Context) error {
	var req struct {
		Name      string `json:"name"`
		Subdomain string `json:"subdomain"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	tenant, err := h.subscriptionSvc.Provision(c.Request().Context(), req.Name, req.Subdomain)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Tenant provisioned",
		"tenant":  tenant,
	})
}

// ListTenants handles GET /superadmin/tenants
func (h *SuperadminHandlers) ListTenants(c echo.Context) error {
	limit, offset := paginationParams(c)
	tenants, err := h.subscriptionSvc.List(c.Request().Context(), limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   limit,
		"offset":  offset,
	})
}

// UpdateTenant handles PATCH /superadmin/tenants/:id with an action of
// suspend, reinstate, or cancel.
func (h *SuperadminHandlers) UpdateTenant(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	tenantID, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.SendError(c, err)
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	actor := userID.String()
	switch req.Action {
	case "SUSPEND":
		err = h.subscriptionSvc.Suspend(ctx, tenantID, actor)
	case "REINSTATE":
		err = h.subscriptionSvc.Reinstate(ctx, tenantID, actor)
	case "CANCEL":
		err = h.subscriptionSvc.Cancel(ctx, tenantID, actor)
	default:
		return common.SendError(c, common.ValidationError("action", "must be SUSPEND, REINSTATE, or CANCEL"))
	}
	if err != nil {
		return common.SendError(c, err)
	}

	tenant, err := h.subscriptionSvc.Get(ctx, tenantID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Tenant updated",
		"tenant":  tenant,
	})
}

// PurgeTenant handles DELETE /superadmin/tenants/:id. Requires the
// confirm=true query parameter; refuses tenants still inside retention.
func (h *SuperadminHandlers) PurgeTenant(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	tenantID, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.SendError(c, err)
	}

	confirmed := c.QueryParam("confirm") == "true"
	if err := h.subscriptionSvc.Purge(ctx, tenantID, confirmed, userID.String()); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Tenant purged",
	})
}

// RunLifecycle handles POST /superadmin/lifecycle/run
func (h *SuperadminHandlers) RunLifecycle(c echo.Context) error {
	evaluated, failed, err := h.scheduler.RunTick(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "Lifecycle run complete",
		"evaluated": evaluated,
		"failed":    failed,
	})
}

// CreatePaymentMethod handles POST /superadmin/payment-methods
func (h *SuperadminHandlers) CreatePaymentMethod(c echo.Context) error {
	var method models.PaymentMethod
	if err := c.Bind(&method); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := h.paymentSvc.Create(c.Request().Context(), &method); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":        "Payment method created",
		"payment_method": method,
	})
}

// ListPaymentMethods handles GET /superadmin/payment-methods
func (h *SuperadminHandlers) ListPaymentMethods(c echo.Context) error {
	methods, err := h.paymentSvc.ListAll(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payment_methods": methods})
}

// UpdatePaymentMethod handles PATCH /superadmin/payment-methods/:id
func (h *SuperadminHandlers) UpdatePaymentMethod(c echo.Context) error {
	ctx := c.Request().Context()

	methodID, err := common.ValidateUUID(c.Param("id"), "payment method id")
	if err != nil {
		return common.SendError(c, err)
	}

	method, err := h.paymentSvc.Get(ctx, methodID)
	if err != nil {
		return common.SendError(c, err)
	}
	if err := c.Bind(method); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	method.ID = methodID

	if err := h.paymentSvc.Update(ctx, method); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":        "Payment method updated",
		"payment_method": method,
	})
}

// DeletePaymentMethod handles DELETE /superadmin/payment-methods/:id
func (h *SuperadminHandlers) DeletePaymentMethod(c echo.Context) error {
	methodID, err := common.ValidateUUID(c.Param("id"), "payment method id")
	if err != nil {
		return common.SendError(c, err)
	}
	if err := h.paymentSvc.Delete(c.Request().Context(), methodID); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Payment method deleted",
	})
}
