package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/orders"
	"github.com/MrEthical07/storefront/internal/validate"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

var errInvalidJSON = errors.New("invalid JSON body")

// decode reads a JSON body into dst and validates it. An empty body
// decodes as the zero value so that validation reports the missing fields.
func (a *API) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		return errInvalidJSON
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return errInvalidJSON
		}
	}
	return a.validate.Struct(dst)
}

type errorMapping struct {
	target  error
	status  int
	message string // empty: use the error text
}

var errorTable = []errorMapping{
	{errInvalidJSON, http.StatusBadRequest, "Invalid JSON body"},

	{storefront.ErrInvalidInput, http.StatusBadRequest, "Name, valid email and password are required"},
	{storefront.ErrPasswordPolicy, http.StatusBadRequest, "Password does not meet the length policy"},
	{storefront.ErrPasswordReuse, http.StatusBadRequest, "New password must be different from current password"},
	{storefront.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{storefront.ErrAccountUnverified, http.StatusForbidden, "Please verify your email before logging in"},
	{storefront.ErrAccountDisabled, http.StatusForbidden, "Account disabled"},
	{storefront.ErrUserExists, http.StatusConflict, "Email already registered"},
	{storefront.ErrUserNotFound, http.StatusNotFound, "User not found"},

	{storefront.ErrLoginRateLimited, http.StatusTooManyRequests, "Too many login attempts, try again later"},
	{storefront.ErrRefreshRateLimited, http.StatusTooManyRequests, "Too many requests, try again later"},
	{storefront.ErrAccountCreationRateLimited, http.StatusTooManyRequests, "Too many requests, try again later"},
	{storefront.ErrEmailVerificationRateLimited, http.StatusTooManyRequests, "Too many requests, try again later"},
	{storefront.ErrPasswordResetRateLimited, http.StatusTooManyRequests, "Too many requests, try again later"},
	{storefront.ErrTOTPRateLimited, http.StatusTooManyRequests, "Too many 2FA attempts, try again later"},

	{storefront.ErrTOTPRequired, http.StatusUnauthorized, "2FA code required"},
	{storefront.ErrTOTPInvalid, http.StatusUnauthorized, "Invalid 2FA code"},
	{storefront.ErrTOTPNotConfigured, http.StatusBadRequest, "2FA is not set up"},
	{storefront.ErrTOTPAlreadyEnabled, http.StatusConflict, "2FA is already enabled"},

	{storefront.ErrEmailVerificationInvalid, http.StatusBadRequest, "Invalid or expired token"},
	{storefront.ErrPasswordResetInvalid, http.StatusBadRequest, "Invalid or expired token"},
	{storefront.ErrRefreshReuse, http.StatusUnauthorized, "Invalid refresh token"},
	{storefront.ErrRefreshInvalid, http.StatusUnauthorized, "Invalid refresh token"},
	{storefront.ErrTokenInvalid, http.StatusUnauthorized, "Not authorized, token failed"},
	{storefront.ErrUnauthorized, http.StatusUnauthorized, "Not authorized"},
	{storefront.ErrPermissionDenied, http.StatusForbidden, "Access denied"},
	{storefront.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{storefront.ErrSessionLimitExceeded, http.StatusConflict, "Too many active sessions"},

	{storefront.ErrSessionBackendUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{storefront.ErrSessionCreationFailed, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{storefront.ErrPasswordResetUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{storefront.ErrEmailVerificationUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{storefront.ErrTOTPUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{storefront.ErrEngineNotReady, http.StatusServiceUnavailable, "Service temporarily unavailable"},

	{catalog.ErrInvalidID, http.StatusBadRequest, "Invalid product id"},
	{catalog.ErrNotFound, http.StatusNotFound, "Product not found"},
	{catalog.ErrInvalidProduct, http.StatusBadRequest, ""},

	{orders.ErrInvalidID, http.StatusBadRequest, "Invalid order id"},
	{orders.ErrNotFound, http.StatusNotFound, "Order not found"},
	{orders.ErrForbidden, http.StatusForbidden, "Access denied"},
	{orders.ErrEmptyOrder, http.StatusBadRequest, "Order must contain at least one item"},
	{orders.ErrInvalidStatus, http.StatusBadRequest, "Invalid order status"},
	{orders.ErrInvalidOrder, http.StatusBadRequest, ""},
}

// fail writes the response for err. Errors outside the table are logged
// and reported as 500 without detail.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeMessage(w, http.StatusBadRequest, capitalize(validate.Message(verrs)))
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = capitalize(err.Error())
			}
			writeMessage(w, m.status, msg)
			return
		}
	}

	a.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
