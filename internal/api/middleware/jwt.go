package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"agritrace.io/agritrace/internal/audit"
	apperrors "agritrace.io/agritrace/internal/pkg/errors"
)

// JWTClaims defines custom JWT claims for AgriTrace.
type JWTClaims struct {
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username"`
	EmpresaID   *int64   `json:"empresa_id,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT signing configuration.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are older keys still accepted during rotation.
	VerificationKeys [][]byte
	Issuer           string
	ExpiresIn        time.Duration
}

// GenerateToken creates a signed JWT for the given user.
func GenerateToken(cfg JWTConfig, userID int64, username string, empresaID *int64, roles, permissions []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)

	claims := JWTClaims{
		UserID:      userID,
		Username:    username,
		EmpresaID:   empresaID,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies tokenString against the signing key and then each
// verification key.
func (cfg JWTConfig) ValidateToken(_ context.Context, tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	keys := append([][]byte{cfg.SigningKey}, cfg.VerificationKeys...)
	var lastErr error
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, opts...)
		if err == nil && token.Valid {
			return claims, nil
		}
		lastErr = err
		// Only a signature mismatch is worth retrying with another key.
		if err != nil && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if lastErr == nil {
		lastErr = jwt.ErrTokenUnverifiable
	}
	return nil, lastErr
}

// JWTAuth returns a Gin middleware that validates Bearer tokens and populates
// the request context with the principal and its audit actor.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "invalid authorization header format"))
			return
		}

		claims, err := cfg.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				AbortWithError(c, apperrors.Unauthorized(apperrors.CodeTokenExpired, "token expired"))
				return
			}
			AbortWithError(c, apperrors.Unauthorized(apperrors.CodeTokenInvalid, "invalid token"))
			return
		}

		p := Principal{
			UserID:      claims.UserID,
			Username:    claims.Username,
			TenantID:    claims.EmpresaID,
			Roles:       claims.Roles,
			Permissions: claims.Permissions,
		}
		c.Set(KeyUserID, p.UserID)
		c.Set(KeyUsername, p.Username)
		c.Set(KeyTenantID, p.TenantID)
		c.Set(KeyRoles, p.Roles)
		c.Set(KeyPermissions, p.Permissions)

		ctx := SetPrincipal(c.Request.Context(), p)
		ctx = audit.WithActor(ctx, audit.Actor{ID: p.UserID, Username: p.Username, TenantID: p.TenantID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
