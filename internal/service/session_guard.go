package service

import (
	"errors"
	"time"

	"storefront/internal/model"
)

// Outcomes of a session check, also used as metric labels.
const (
	SessionAnonymous = "anonymous"
	SessionValid     = "valid"
	SessionReissued  = "reissued"
	SessionReplaced  = "replaced"
	SessionRejected  = "rejected"
)

// Decision is the result of checking the cookie pair of one request.
type Decision struct {
	Outcome   string
	Anonymous bool
	Claims    model.AuthClaims

	// ReissuedAccess is set when the caller must receive a new access cookie.
	ReissuedAccess  string
	AccessExpiresAt time.Time

	// StaleAccess is why a present access token was replaced.
	StaleAccess error
}

// SessionGuard decides, from the access and refresh tokens alone, whether a
// request carries an identity. The refresh token is authoritative: the
// access token is only a cache of its claims.
type SessionGuard struct {
	tokens *TokenService
}

func NewSessionGuard(tokens *TokenService) *SessionGuard {
	return &SessionGuard{tokens: tokens}
}

func (g *SessionGuard) Check(accessToken string, refreshToken string) (Decision, error) {
	if refreshToken == "" {
		return Decision{Outcome: SessionAnonymous, Anonymous: true}, nil
	}

	claims, err := g.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return Decision{Outcome: SessionRejected}, err
	}

	decision := Decision{Outcome: SessionValid, Claims: claims}
	if accessToken != "" {
		_, accessErr := g.tokens.VerifyAccess(accessToken)
		if accessErr == nil {
			return decision, nil
		}
		decision.Outcome = SessionReplaced
		decision.StaleAccess = accessErr
	} else {
		decision.Outcome = SessionReissued
	}

	minted, expiresAt, err := g.tokens.MintAccess(claims)
	if err != nil {
		return Decision{Outcome: SessionRejected}, err
	}
	decision.ReissuedAccess = minted
	decision.AccessExpiresAt = expiresAt

	return decision, nil
}

// IsExpired reports whether a verification failure was only an expiry.
func IsExpired(err error) bool {
	return errors.Is(err, model.ErrTokenExpired)
}
