// Package security verifies and issues bearer tokens.
package security

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/foodorder/internal/domain/auth"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "foodorder"

type claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWT signs and verifies HS256 tokens carrying the user id in the subject.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT creates a JWT with the shared secret and token lifetime.
func NewJWT(secret []byte, ttl time.Duration) *JWT {
	return &JWT{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token for p.
func (j *JWT) Issue(p auth.Principal) (string, error) {
	now := j.now()
	c := claims{
		Role:  string(p.Role),
		Name:  p.Name,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}

// Verify parses token and returns its principal.
func (j *JWT) Verify(token string) (auth.Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return auth.Principal{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return auth.Principal{}, errors.Wrap(ErrInvalidToken, "bad subject")
	}
	role := auth.Role(c.Role)
	if !role.Valid() {
		return auth.Principal{}, errors.Wrap(ErrInvalidToken, "bad role")
	}

	return auth.Principal{
		UserID: id,
		Role:   role,
		Name:   c.Name,
		Email:  c.Email,
	}, nil
}
