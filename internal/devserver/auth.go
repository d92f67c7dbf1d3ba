package devserver

import (
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"taskboard/internal/model"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator maps an Authorization header to the calling user.
type Authenticator interface {
	UserID(header string) (model.ID, error)
}

func bearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(header[7:])
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// StaticToken accepts a single shared token for one user.
type StaticToken struct {
	Token string
	User  model.ID
}

func (s StaticToken) UserID(header string) (model.ID, error) {
	tok, err := bearer(header)
	if err != nil {
		return "", err
	}
	if tok != s.Token {
		return "", ErrInvalidToken
	}
	return s.User, nil
}

// JWTAuth validates JWTs and uses the subject claim as the user id. It verifies either
// HS256 with a shared secret or RS256 against a JWKS endpoint.
type JWTAuth struct {
	parser *jwt.Parser
	key    jwt.Keyfunc
	jwks   *keyfunc.JWKS
}

func NewHS256Auth(secret []byte) (*JWTAuth, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty jwt secret")
	}
	return &JWTAuth{
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		key:    func(*jwt.Token) (any, error) { return secret, nil },
	}, nil
}

func NewJWKSAuth(url string, refresh time.Duration) (*JWTAuth, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{RefreshInterval: refresh})
	if err != nil {
		return nil, err
	}
	return &JWTAuth{
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		key:    jwks.Keyfunc,
		jwks:   jwks,
	}, nil
}

func (a *JWTAuth) UserID(header string) (model.ID, error) {
	tok, err := bearer(header)
	if err != nil {
		return "", err
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := a.parser.ParseWithClaims(tok, claims, a.key)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return model.ID(sub), nil
}

// Close stops JWKS background refresh.
func (a *JWTAuth) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// SignDevToken mints an HS256 token for userID, for local use against NewHS256Auth.
func SignDevToken(secret []byte, userID model.ID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
