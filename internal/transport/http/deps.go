package http

import (
	"github.com/phone-verification-api/internal/application/verification"
	"github.com/phone-verification-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Store     verification.Store
	SMSSender sns.SMSSender // nil when SNS is not configured
}
