package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"goalwise/internal/auth"
	apperrors "goalwise/internal/errors"
)

// CallerIDKey is the gin context key holding the authenticated caller.
const CallerIDKey = "callerID"

const tokenIssuer = "goalwise-identity"

// Claims are the identity-provider token claims. The subject is the caller id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for subject. The identity provider owns
// token issuance in production; this is used by local tooling and tests.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns the caller id it names.
func ParseToken(secret, tokenString string) (auth.CallerID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", apperrors.WithMessage(apperrors.ErrUnauthenticated, "Invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", apperrors.WithMessage(apperrors.ErrUnauthenticated, "Token has no subject")
	}
	return auth.CallerID(claims.Subject), nil
}

// AuthMiddleware verifies the bearer token and attaches the caller to both
// the gin context and the request context. Requests without a valid token
// are rejected before any handler runs.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			abortWithAppError(c, err)
			return
		}

		caller, err := ParseToken(secret, tokenString)
		if err != nil {
			abortWithAppError(c, err)
			return
		}

		c.Set(CallerIDKey, caller)
		c.Request = c.Request.WithContext(auth.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on WebSocket upgrades, so the access_token query
// parameter is accepted for upgrade requests only.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if tok := c.Query("access_token"); tok != "" {
				return tok, nil
			}
		}
		return "", apperrors.WithMessage(apperrors.ErrUnauthenticated, "Authorization header is required")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperrors.WithMessage(apperrors.ErrUnauthenticated, "Invalid authorization header format")
	}
	return parts[1], nil
}

func abortWithAppError(c *gin.Context, err error) {
	appErr := apperrors.ErrUnauthenticated
	_ = errors.As(err, &appErr)
	writeError(c, appErr)
}
