/*
Package auth provides the authentication boundary for the marketplace.

PURPOSE:
  Sign-in, sign-up, and the password reset/change primitives the API
  layer consumes. The Provider interface keeps the domain independent of
  the credential backend; the bundled Local provider stores bcrypt hashes
  in the document store and issues HS256 session tokens.

SESSIONS:
  A session is a signed JWT carrying the account id and role. The API
  middleware verifies the token and attaches the identity to the request
  context; role enforcement happens there and again inside staff-only
  workflow operations.

RESET LINKS:
  Password resets generate a single-use token with an expiry and hand it
  to a ResetSender. Delivery is an external concern; the default sender
  just logs the link.

SEE ALSO:
  - auth/local.go: the bcrypt/JWT implementation
  - api: middleware that consumes Verify
*/
package auth

import (
	"context"
	"time"

	"github.com/campuscart/market-engine/market"
)

// Session is an authenticated identity plus its bearer token.
type Session struct {
	UserID    string
	Email     string
	Role      market.Role
	Token     string
	ExpiresAt time.Time
}

// Claims is the verified content of a session token.
type Claims struct {
	UserID string
	Email  string
	Role   market.Role
}

// Provider is the authentication boundary consumed by the API layer.
type Provider interface {
	// SignUp registers credentials and returns the new identity id.
	// The caller creates the matching market.Account under that id.
	SignUp(ctx context.Context, email, password string) (string, error)

	// SignIn verifies credentials and returns a session.
	// Fails with market.ErrUnauthenticated on bad credentials.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// Verify checks a bearer token and returns its claims.
	Verify(ctx context.Context, token string) (*Claims, error)

	// ChangePassword verifies the old password before setting the new one.
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error

	// SendPasswordReset issues a reset token for the email and hands the
	// link to the configured sender.
	SendPasswordReset(ctx context.Context, email string) error

	// AdminResetPassword is the staff-triggered variant: it sends a reset
	// link, it never sets a password directly.
	AdminResetPassword(ctx context.Context, email string) error

	// ResetPassword consumes a reset token and sets the new password.
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ResetSender delivers a password reset link. Delivery is external to
// this system.
type ResetSender interface {
	SendReset(ctx context.Context, email, token string) error
}
