package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/storefront"
	"github.com/go-chi/chi/v5"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email         string `json:"email" validate:"required"`
	Password      string `json:"password" validate:"required"`
	TwoFactorCode string `json:"twoFactorCode"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type codeRequest struct {
	Token string `json:"token" validate:"required"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func newTokenResponse(p storefront.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
	}
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.engine.Register(r.Context(), storefront.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered. Check your email to verify the account.",
		"user":    user,
	})
}

func (a *API) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.ConfirmEmailVerification(r.Context(), chi.URLParam(r, "token")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (a *API) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.RequestEmailVerification(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "If the account exists and is not verified, a new link has been sent")
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.engine.Login(r.Context(), storefront.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		TOTPCode: req.TwoFactorCode,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		tokenResponse
		User storefront.PublicUser `json:"user"`
	}{"Login successful", newTokenResponse(res.TokenPair), res.User})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(*pair))
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.RefreshToken != "" {
		if err := a.engine.Logout(r.Context(), req.RefreshToken); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

func (a *API) logoutAll(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.LogoutAll(r.Context(), caller(r).UserID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "All sessions ended")
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.engine.ListSessions(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (a *API) revokeSession(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.RevokeSession(r.Context(), caller(r).UserID, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Session revoked")
}

func (a *API) setupTOTP(w http.ResponseWriter, r *http.Request) {
	setup, err := a.engine.SetupTOTP(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "2FA secret created, confirm it with a code",
		"secret":     setup.Secret,
		"otpauthUrl": setup.URL,
		"qr":         setup.QRCode,
	})
}

// During enrolment and removal a wrong code is a bad request, not a failed
// login.
func (a *API) failTOTP(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storefront.ErrTOTPInvalid) {
		writeMessage(w, http.StatusBadRequest, "Invalid code")
		return
	}
	a.fail(w, r, err)
}

func (a *API) verifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.ConfirmTOTPSetup(r.Context(), caller(r).UserID, req.Token); err != nil {
		a.failTOTP(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "2FA enabled")
}

func (a *API) disableTOTP(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.DisableTOTP(r.Context(), caller(r).UserID, req.Token); err != nil {
		a.failTOTP(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "2FA disabled")
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "If the user exists, a reset link has been sent")
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.ConfirmPasswordReset(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.ChangePassword(r.Context(), caller(r).UserID, req.OldPassword, req.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed, please log in again")
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.Profile(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) loginHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.engine.LoginHistory(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
