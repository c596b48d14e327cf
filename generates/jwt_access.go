package generates

import (
	"fmt"
	"strings"
	"time"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims jwt claims. Permissions is the matrix of the user's home
// context at issue time; it is informational and never used to authorize.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role          string   `json:"role"`
	InstitutionID string   `json:"institution_id,omitempty"`
	SchoolID      string   `json:"school_id,omitempty"`
	Permissions   []string `json:"permissions"` // always present, even if empty
}

// Subject is what a token is issued for.
type Subject struct {
	UserID        string
	Role          permission.Role
	InstitutionID string
	SchoolID      string
	Permissions   []permission.Key
	TTL           time.Duration // zero uses the issuer default
}

// TokenIssuer signs and verifies access tokens with a shared secret.
type TokenIssuer struct {
	SignedKeyID  string
	SignedKey    []byte
	SignedMethod jwt.SigningMethod
	Issuer       string
	TTL          time.Duration

	now func() time.Time
}

// NewTokenIssuer create to generate the jwt access token instance. Only the
// HMAC family is accepted.
func NewTokenIssuer(kid string, key []byte, method jwt.SigningMethod, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	if !strings.HasPrefix(method.Alg(), "HS") {
		return nil, errors.New("unsupported sign method " + method.Alg())
	}
	if len(key) == 0 {
		return nil, errors.New("empty signing key")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		SignedKeyID:  kid,
		SignedKey:    key,
		SignedMethod: method,
		Issuer:       issuer,
		TTL:          ttl,
		now:          time.Now,
	}, nil
}

// SigningMethod maps a config value such as "HS384" to a jwt method.
func SigningMethod(name string) (jwt.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	}
	return nil, errors.Validation("jwt.method", "unsupported signing method "+name)
}

// Issue returns a signed token and its expiry.
func (a *TokenIssuer) Issue(sub Subject) (string, time.Time, error) {
	if sub.UserID == "" {
		return "", time.Time{}, errors.Validation("sub", "required")
	}
	ttl := a.TTL
	if sub.TTL > 0 {
		ttl = sub.TTL
	}
	issuedAt := a.now().UTC()
	expires := issuedAt.Add(ttl)

	perms := make([]string, 0, len(sub.Permissions))
	for _, k := range sub.Permissions {
		perms = append(perms, k.String())
	}
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.Issuer,
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role:          sub.Role.String(),
		InstitutionID: sub.InstitutionID,
		SchoolID:      sub.SchoolID,
		Permissions:   perms,
	}

	token := jwt.NewWithClaims(a.SignedMethod, claims)
	if a.SignedKeyID != "" {
		token.Header["kid"] = a.SignedKeyID
	}
	access, err := token.SignedString(a.SignedKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return access, expires, nil
}

// Parse verifies signature, algorithm, issuer and expiry. Any failure is
// reported as ErrInvalidToken.
func (a *TokenIssuer) Parse(raw string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{a.SignedMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Issuer))
	}
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.SignedKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
