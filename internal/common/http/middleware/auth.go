package middleware

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strings"

	pkgerrors "riddlehub/pkg/errors"
	"riddlehub/pkg/utils/contextkey"
	"riddlehub/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDContextKey = "user_id"

// AuthConfig controls how a request is mapped to a user identifier.
type AuthConfig struct {
	// DirectBearer additionally accepts "Bearer <jwt>" credentials and uses
	// the token subject as the user id. Basic credentials are always accepted.
	DirectBearer bool
	JWTSecret    []byte
	JWTIssuer    string
}

// AuthMiddleware extracts the user identifier from the Authorization header.
// The default scheme is "Basic base64(username:password)"; only the username
// is used as the identifier, the password is not verified.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := resolveUserID(cfg, c.GetHeader("Authorization"))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(userIDContextKey, userID)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserID returns the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(userIDContextKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func resolveUserID(cfg AuthConfig, header string) (string, error) {
	if header == "" {
		return "", pkgerrors.New(pkgerrors.Unauthorized)
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", pkgerrors.New(pkgerrors.Unauthorized)
	}
	scheme, credentials := parts[0], strings.TrimSpace(parts[1])

	switch {
	case strings.EqualFold(scheme, "Basic"):
		return basicUsername(credentials)
	case strings.EqualFold(scheme, "Bearer") && cfg.DirectBearer:
		return bearerSubject(cfg, credentials)
	default:
		return "", pkgerrors.New(pkgerrors.Unauthorized)
	}
}

func basicUsername(credentials string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.Unauthorized)
	}

	// password is intentionally ignored
	username, _, _ := strings.Cut(string(decoded), ":")
	if username == "" {
		return "", pkgerrors.New(pkgerrors.Unauthorized)
	}
	return username, nil
}

func bearerSubject(cfg AuthConfig, raw string) (string, error) {
	if raw == "" || len(cfg.JWTSecret) == 0 {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}

	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.JWTSecret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return "", pkgerrors.New(pkgerrors.TokenExpired)
		}
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if !parsed.Valid {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if cfg.JWTIssuer != "" && claims.Issuer != cfg.JWTIssuer {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims.Subject, nil
}
