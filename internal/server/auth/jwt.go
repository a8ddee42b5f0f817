// Package auth implements the session credential: a signed, time-bounded
// JWT binding a request to a user. Tokens are stateless; verification is by
// signature and expiry only.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wilvurson/ai-chat/internal/common"
)

// Claims carries the registered claims plus the identity fields we bind the
// session to.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// Principal is a verified identity extracted from a credential.
type Principal struct {
	UserID string
	Email  string
}

// Provider issues and verifies session credentials. The signing key is
// injected rather than read from ambient state; KeyVersion is stamped into
// the token header so keys can be rotated later.
type Provider struct {
	secret     []byte
	keyVersion string
	validity   time.Duration
}

func NewProvider(secret []byte, keyVersion string, validity time.Duration) *Provider {
	return &Provider{secret: secret, keyVersion: keyVersion, validity: validity}
}

// Issue produces a signed token for the given identity. Pure computation,
// no side effects.
func (p *Provider) Issue(userID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.validity)),
		},
		UserID: userID,
		Email:  email,
	})
	token.Header["kid"] = p.keyVersion

	return token.SignedString(p.secret)
}

// Verify checks signature and expiry. Malformed, forged and expired tokens
// all return common.ErrUnauthenticated so callers cannot distinguish them.
func (p *Provider) Verify(tokenString string) (Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, common.ErrUnauthenticated
	}

	return Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

// Validity reports the configured token lifetime, used to set the cookie
// max-age to match.
func (p *Provider) Validity() time.Duration {
	return p.validity
}
