// Package admin guards the analytics dashboard behind a single bcrypt
// password and short-lived JWTs.
package admin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
)

// PasswordCost is the bcrypt cost used by HashPassword.
const PasswordCost = 12

var (
	ErrInvalidPassword = apperrors.New(apperrors.ErrAdminInvalidPassword)
	ErrInvalidToken    = apperrors.New(apperrors.ErrAdminInvalidToken)
	ErrDisabled        = apperrors.New(apperrors.ErrAdminDisabled)
)

type Config struct {
	PasswordHash string
	JWTSecret    string
	JWTIssuer    string
	TokenTTL     time.Duration
}

// Session is what a successful login returns.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Authenticator struct {
	hash   []byte
	tokens *TokenManager
	logger *logger.Logger
}

// NewAuthenticator 创建管理员认证器. Admin access stays disabled until both
// a password hash and a JWT secret are configured.
func NewAuthenticator(cfg Config, log *logger.Logger) *Authenticator {
	a := &Authenticator{logger: log.Named("admin")}
	if cfg.PasswordHash != "" && cfg.JWTSecret != "" {
		a.hash = []byte(cfg.PasswordHash)
		a.tokens = NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	}
	return a
}

func (a *Authenticator) Enabled() bool { return a.tokens != nil }

// Login checks password and issues a token.
func (a *Authenticator) Login(ctx context.Context, password, clientIP string) (*Session, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			a.logger.Error("stored admin password hash is unusable", zap.Error(err))
		}
		a.logger.WithContext(ctx).Warn("admin login failed", zap.String("ip", clientIP))
		return nil, ErrInvalidPassword
	}

	token, expires, err := a.tokens.Generate(RoleAdmin)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
	a.logger.WithContext(ctx).Info("admin logged in", zap.String("ip", clientIP))
	return &Session{Token: token, ExpiresAt: expires}, nil
}

// Verify validates a bearer token.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAdminInvalidToken)
	}
	return claims, nil
}

// HashPassword produces a value for admin.password_hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
