package storefront

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/storefront/internal/audit"
)

// Built-in roles. RoleAdmin holds every registered permission.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Permissions checked by the HTTP layer.
const (
	PermProductsWrite  = "products:write"
	PermOrdersReadAll  = "orders:read_all"
	PermOrdersWriteAny = "orders:write_any"
)

// User is the account record exchanged with a [UserProvider]. It carries
// secrets and must never be serialised to clients; use [User.Public].
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Verified     bool
	Active       bool
	TOTP         TOTPState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TOTPState is the 2FA part of a user record. PendingSecret holds a secret
// issued by SetupTOTP that has not been confirmed yet. LastCounter is the
// highest time step accepted so far.
type TOTPState struct {
	Enabled       bool
	Secret        string
	PendingSecret string
	LastCounter   int64
}

// LoginRecord is one entry of a user's login history.
type LoginRecord struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Date      time.Time `json:"date"`
}

// PublicUser is the client-facing projection of [User].
type PublicUser struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Verified         bool      `json:"isVerified"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Public strips credentials from u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		Verified:         u.Verified,
		TwoFactorEnabled: u.TOTP.Enabled,
		CreatedAt:        u.CreatedAt,
	}
}

// CreateUserInput is passed to [UserProvider.CreateUser]. The email is
// already normalised and the password already hashed.
type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Verified     bool
}

// UserProvider is implemented by the application's user repository.
// Lookups return [ErrUserNotFound] for a missing user and CreateUser
// returns [ErrUserExists] for a taken email. UpdateTOTPCounter must be a
// compare-and-set: it stores counter only when it is greater than the
// stored value and returns [ErrTOTPInvalid] otherwise.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	MarkVerified(ctx context.Context, userID string) error
	SetRole(ctx context.Context, userID, role string) error
	SetActive(ctx context.Context, userID string, active bool) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetPendingTOTPSecret(ctx context.Context, userID, secret string) error
	EnableTOTP(ctx context.Context, userID, secret string, counter int64) error
	DisableTOTP(ctx context.Context, userID string) error
	UpdateTOTPCounter(ctx context.Context, userID string, counter int64) error
	AppendLoginHistory(ctx context.Context, userID string, record LoginRecord, limit int) error
	LoginHistory(ctx context.Context, userID string) ([]LoginRecord, error)
}

// Notifier delivers account links. It is only called for real users, so an
// implementation may fail loudly without leaking account existence.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// RegisterInput is the payload of [Engine.Register].
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput is the payload of [Engine.Login]. TOTPCode may be empty for
// accounts without 2FA.
type LoginInput struct {
	Email    string
	Password string
	TOTPCode string
}

// TokenPair is an access JWT plus its opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    time.Duration `json:"-"`
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	TokenPair
	User PublicUser `json:"user"`
}

// AuthResult describes the caller behind a validated access token.
type AuthResult struct {
	UserID      string
	SessionID   string
	Role        string
	Perms       uint64
	Permissions []string
}

// SessionInfo is the client-facing view of one session.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

// TOTPSetup is returned by [Engine.SetupTOTP]. QRCode is a PNG data URL.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauthUrl"`
	QRCode string `json:"qrCode"`
	png    []byte
}

// PNG returns the raw QR image behind QRCode.
func (s *TOTPSetup) PNG() []byte {
	return s.png
}

// AuditEvent is an alias of the internal audit event.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink
