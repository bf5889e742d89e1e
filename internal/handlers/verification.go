package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"speakwise-feedback/internal/cache"
	"speakwise-feedback/internal/common"
	"speakwise-feedback/internal/feedback"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	VerificationHeader     = "X-Verification-Token"
	verificationContextKey = "verification"
)

var (
	ErrVerificationUsed    = errors.New("verification token already used")
	ErrVerificationMissing = errors.New("verification token missing")
)

// VerificationAuth issues and checks the short lived tokens proving that the
// caller passed the attendee verification gate.
type VerificationAuth struct {
	Secret string
	TTL    time.Duration
	cache  cache.Cache
	now    func() time.Time
}

func NewVerificationAuth(secret string, ttl time.Duration, c cache.Cache) *VerificationAuth {
	return &VerificationAuth{Secret: secret, TTL: ttl, cache: c, now: time.Now}
}

func (a *VerificationAuth) Issue(identity feedback.Identity, eventID int) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.TTL)

	claims := &common.VerificationClaims{
		Virtual: identity.Virtual(),
		EventID: eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if verified, ok := identity.(feedback.VerifiedAttendee); ok {
		claims.Email = verified.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (a *VerificationAuth) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(a.Secret),
		TokenLookup: "header:" + VerificationHeader,
		ContextKey:  verificationContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(common.VerificationClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			c.Logger().Debugf("rejected verification token: %v", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Please verify your attendance before leaving feedback.")
		},
	})
}

func (a *VerificationAuth) Claims(c echo.Context) (*common.VerificationClaims, error) {
	token, ok := c.Get(verificationContextKey).(*jwt.Token)
	if !ok {
		return nil, ErrVerificationMissing
	}
	claims, ok := token.Claims.(*common.VerificationClaims)
	if !ok || claims.ID == "" {
		return nil, ErrVerificationMissing
	}
	return claims, nil
}

func (a *VerificationAuth) Consume(ctx context.Context, claims *common.VerificationClaims) error {
	ttl := a.TTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(a.now())
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	stored, err := a.cache.SetNX(ctx, usedTokenKey(claims.ID), []byte("1"), ttl)
	if err != nil {
		return err
	}
	if !stored {
		return ErrVerificationUsed
	}
	return nil
}

func usedTokenKey(id string) string {
	return "verification-used:" + id
}
