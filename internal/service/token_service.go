package service

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storefront/internal/model"
	"storefront/pkg/apierror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the access/refresh pair. Each kind has its
// own secret so a refresh token can never pass as an access token.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and verifying.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) IssuePair(claims model.AuthClaims) (model.TokenPair, error) {
	accessToken, accessExp, err := s.sign(claims, tokenTypeAccess, s.accessSecret, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, refreshExp, err := s.sign(claims, tokenTypeRefresh, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// MintAccess signs a fresh access token for claims that were already
// verified, typically those of a refresh token.
func (s *TokenService) MintAccess(claims model.AuthClaims) (string, time.Time, error) {
	return s.sign(claims, tokenTypeAccess, s.accessSecret, s.accessTTL)
}

func (s *TokenService) VerifyAccess(token string) (model.AuthClaims, error) {
	return s.verify(token, tokenTypeAccess, s.accessSecret, model.ErrInvalidAccessToken)
}

func (s *TokenService) VerifyRefresh(token string) (model.AuthClaims, error) {
	return s.verify(token, tokenTypeRefresh, s.refreshSecret, model.ErrInvalidRefreshToken)
}

func (s *TokenService) sign(claims model.AuthClaims, typ string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(claims.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}

	return signed, expiresAt, nil
}

var (
	errWrongTokenType = errors.New("wrong token type")
	errBadSubject     = errors.New("token subject is not a user id")
)

func (s *TokenService) verify(raw string, typ string, secret []byte, sentinel error) (model.AuthClaims, error) {
	parsed := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, parsed,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	var userID int64
	if err == nil && parsed.Type != typ {
		err = errWrongTokenType
	}
	if err == nil {
		userID, err = strconv.ParseInt(parsed.Subject, 10, 64)
		if err != nil || userID <= 0 {
			err = errBadSubject
		}
	}

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			err = fmt.Errorf("%w: %w", model.ErrTokenExpired, err)
		}
		return model.AuthClaims{}, apierror.Wrap(fmt.Errorf("%w: %w", sentinel, err),
			apierror.CodeUnauthorized, sentinel.Error(), http.StatusUnauthorized)
	}

	return model.AuthClaims{
		UserID: userID,
		Name:   parsed.Name,
		Email:  parsed.Email,
		Role:   parsed.Role,
	}, nil
}
