/*
local.go - Local credential provider

PURPOSE:
  Stores credentials as bcrypt hashes in a "credentials" collection keyed
  by normalized email, and issues HS256 JWT session tokens. Role claims
  come from the account record so a token always reflects the role at
  sign-in time.
*/
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuscart/market-engine/docstore"
	"github.com/campuscart/market-engine/market"
)

const collectionCredentials = "credentials"

// credentialDoc is the stored credential record.
type credentialDoc struct {
	Email        string     `json:"email"`
	UserID       string     `json:"userId"`
	PasswordHash string     `json:"passwordHash"`
	ResetToken   string     `json:"resetToken,omitempty"`
	ResetExpires *time.Time `json:"resetExpires,omitempty"`
}

// sessionClaims is the JWT payload.
type sessionClaims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Role   market.Role `json:"role"`
	jwt.RegisteredClaims
}

// =============================================================================
// LOCAL PROVIDER
// =============================================================================

// Local implements Provider against the document store.
type Local struct {
	store    docstore.Store
	accounts *market.Accounts
	secret   []byte
	tokenTTL time.Duration
	resetTTL time.Duration
	sender   ResetSender
}

// NewLocal constructs a provider. sender may be nil; resets are then
// logged instead of delivered.
func NewLocal(store docstore.Store, accounts *market.Accounts, secret []byte, tokenTTL time.Duration, sender ResetSender) *Local {
	if sender == nil {
		sender = logSender{}
	}
	return &Local{
		store:    store,
		accounts: accounts,
		secret:   secret,
		tokenTTL: tokenTTL,
		resetTTL: time.Hour,
		sender:   sender,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers credentials and returns the new identity id.
func (l *Local) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 8 {
		return "", fmt.Errorf("%w: email required and password must be at least 8 characters", market.ErrUnauthenticated)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	cred := credentialDoc{
		Email:        email,
		UserID:       uuid.NewString(),
		PasswordHash: string(hash),
	}
	doc, err := encodeCred(cred)
	if err != nil {
		return "", err
	}
	if err := l.store.Put(ctx, collectionCredentials, doc); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return "", fmt.Errorf("%w: email already registered", market.ErrUnauthenticated)
		}
		return "", err
	}
	return cred.UserID, nil
}

// SignIn verifies credentials and issues a session token.
func (l *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	cred, _, err := l.getCred(ctx, email)
	if err != nil {
		// Same failure for unknown email and bad password.
		return nil, market.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, market.ErrUnauthenticated
	}

	account, err := l.accounts.Get(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	expires := time.Now().Add(l.tokenTTL)
	claims := &sessionClaims{
		UserID: account.ID,
		Email:  account.Email,
		Role:   account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{
		UserID:    account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Token:     token,
		ExpiresAt: expires,
	}, nil
}

// Verify checks a bearer token.
func (l *Local) Verify(_ context.Context, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return l.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, market.ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok {
		return nil, market.ErrUnauthenticated
	}
	return &Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// ChangePassword verifies the old password before setting the new one.
func (l *Local) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", market.ErrUnauthenticated)
	}

	cred, doc, err := l.getCredByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(oldPassword)); err != nil {
		return market.ErrUnauthenticated
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	cred.PasswordHash = string(hash)
	return l.saveCred(ctx, cred, doc.Version)
}

// SendPasswordReset issues a reset token and hands the link to the sender.
func (l *Local) SendPasswordReset(ctx context.Context, email string) error {
	cred, doc, err := l.getCred(ctx, email)
	if err != nil {
		// Do not reveal whether the email exists.
		return nil
	}

	token := uuid.NewString()
	expires := time.Now().Add(l.resetTTL)
	cred.ResetToken = token
	cred.ResetExpires = &expires
	if err := l.saveCred(ctx, cred, doc.Version); err != nil {
		return err
	}
	return l.sender.SendReset(ctx, cred.Email, token)
}

// AdminResetPassword sends a reset link on a user's behalf; it never sets
// a password directly.
func (l *Local) AdminResetPassword(ctx context.Context, email string) error {
	return l.SendPasswordReset(ctx, email)
}

// ResetPassword consumes a reset token and sets the new password.
func (l *Local) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", market.ErrUnauthenticated)
	}

	docs, err := l.store.List(ctx, collectionCredentials)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		var cred credentialDoc
		if err := decodeCred(doc, &cred); err != nil {
			return err
		}
		if cred.ResetToken != token || cred.ResetToken == "" {
			continue
		}
		if cred.ResetExpires == nil || time.Now().After(*cred.ResetExpires) {
			return fmt.Errorf("%w: reset token expired", market.ErrUnauthenticated)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		cred.PasswordHash = string(hash)
		cred.ResetToken = ""
		cred.ResetExpires = nil
		return l.saveCred(ctx, cred, doc.Version)
	}
	return fmt.Errorf("%w: invalid reset token", market.ErrUnauthenticated)
}

// =============================================================================
// CREDENTIAL STORAGE
// =============================================================================

func (l *Local) getCred(ctx context.Context, email string) (credentialDoc, docstore.Document, error) {
	email = normalizeEmail(email)
	doc, err := l.store.Get(ctx, collectionCredentials, email)
	if err != nil {
		return credentialDoc{}, docstore.Document{}, err
	}
	var cred credentialDoc
	if err := decodeCred(doc, &cred); err != nil {
		return credentialDoc{}, docstore.Document{}, err
	}
	return cred, doc, nil
}

func (l *Local) getCredByUserID(ctx context.Context, userID string) (credentialDoc, docstore.Document, error) {
	docs, err := l.store.List(ctx, collectionCredentials)
	if err != nil {
		return credentialDoc{}, docstore.Document{}, err
	}
	for _, doc := range docs {
		var cred credentialDoc
		if err := decodeCred(doc, &cred); err != nil {
			return credentialDoc{}, docstore.Document{}, err
		}
		if cred.UserID == userID {
			return cred, doc, nil
		}
	}
	return credentialDoc{}, docstore.Document{}, market.ErrUnauthenticated
}

func (l *Local) saveCred(ctx context.Context, cred credentialDoc, version int64) error {
	doc, err := encodeCred(cred)
	if err != nil {
		return err
	}
	doc.Version = version
	_, err = l.store.Update(ctx, collectionCredentials, doc)
	return err
}

func encodeCred(cred credentialDoc) (docstore.Document, error) {
	data, err := json.Marshal(cred)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encode credential: %w", err)
	}
	return docstore.Document{ID: cred.Email, Data: data}, nil
}

func decodeCred(doc docstore.Document, cred *credentialDoc) error {
	if err := json.Unmarshal(doc.Data, cred); err != nil {
		return fmt.Errorf("decode credential %s: %w", doc.ID, err)
	}
	return nil
}

// =============================================================================
// RESET DELIVERY
// =============================================================================

// logSender is the default ResetSender: it logs the reset link instead of
// delivering it.
type logSender struct{}

func (logSender) SendReset(_ context.Context, email, token string) error {
	log.Printf("password reset for %s: token %s", email, token)
	return nil
}
