package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	TenantIDKey contextKey = "tenant_id"
	RoleKey     contextKey = "role"
)

// Platform roles carried in the JWT. Dealership staff roles may read
// billing state and file approval requests; only the superadmin decides
// them and verifies invoices.
const (
	RoleSuperadmin = "superadmin"
	RoleOwner      = "owner"
	RoleStaff      = "staff"
)

// ErrorResponse is the standardized error body returned by every handler.
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendError maps a billing error onto the standardized response body
// with the status from HTTPStatus.
func SendError(c echo.Context, err error) error {
	status := HTTPStatus(err)
	code := "SERVER_ERROR"
	switch status {
	case http.StatusBadRequest:
		code = "VALIDATION_ERROR"
	case http.StatusNotFound:
		code = "NOT_FOUND"
	case http.StatusConflict:
		code = "CONFLICT"
	case http.StatusForbidden:
		code = "QUOTA_EXCEEDED"
	}
	return c.JSON(status, CreateErrorResponse(code, err.Error(), nil))
}

// ValidateUUID validates UUID path/body parameters.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, ValidationError(fieldName, "is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, ValidationError(fieldName, "must be a valid UUID")
	}
	return id, nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError(fieldName, "is required")
	}
	return nil
}

// ValidatePaginationParams clamps pagination parameters to safe bounds.
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetTenantIDFromContext extracts the tenant ID from the request context
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}

// GetRoleFromContext extracts the platform role from the request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SecureErrorMessage hides internal detail from user-facing failures
// while keeping the failed operation identifiable.
func SecureErrorMessage(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: operation could not be completed", operation)
}
