package session

// Session is one logged-in device. The refresh token itself is never
// stored; RefreshHash is the SHA-256 of its secret half.
type Session struct {
	SessionID string
	UserID    string
	Role      string
	Perms     uint64

	RefreshHash [32]byte
	UserAgent   string
	IP          string

	CreatedAt int64
	RotatedAt int64
	ExpiresAt int64
}
