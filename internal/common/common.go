package common

import (
	"context"
	"time"

	"speakwise-feedback/internal/backend"
	"speakwise-feedback/internal/cache"
	"speakwise-feedback/internal/config"
	"speakwise-feedback/internal/email"
	"speakwise-feedback/internal/feedback"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// VerificationClaims is carried by the token handed out after a successful
// attendee verification. It is exchanged for exactly one submission.
type VerificationClaims struct {
	Email   string `json:"email,omitempty"`
	Virtual bool   `json:"virtual"`
	EventID int    `json:"event_id"`
	jwt.RegisteredClaims
}

// Identity rebuilds the verified identity the token was issued for.
func (c *VerificationClaims) Identity() feedback.Identity {
	if c.Virtual {
		return feedback.VirtualAttendee{}
	}
	return feedback.VerifiedAttendee{Email: c.Email}
}

type VerificationIssuer interface {
	Issue(identity feedback.Identity, eventID int) (string, time.Time, error)
	Middleware() echo.MiddlewareFunc
	Claims(c echo.Context) (*VerificationClaims, error)
	// Consume marks the token as used. It fails if it was used before.
	Consume(ctx context.Context, claims *VerificationClaims) error
}

type ServerState struct {
	Echo        *echo.Echo
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	Cache       cache.Cache
	Store       backend.Store
	Verifier    VerificationIssuer
	Gate        *feedback.Gate
	Feedback    *feedback.Service
	Resolver    *feedback.Resolver
	Source      *feedback.Source
	EmailClient email.EmailClient
}
