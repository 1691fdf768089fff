package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/infrastructure/auth"
	"github.com/groupbuy/backend/internal/infrastructure/logger"
	"github.com/groupbuy/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTUserIDKey  = "jwt_user_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	// QueryTokenParam carries the token for EventSource clients, which cannot set headers
	QueryTokenParam = "access_token"
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	JWTService *auth.JWTService
	// TokenBlacklist is optional; lookups fail open
	TokenBlacklist   auth.TokenBlacklist
	SkipPaths        []string
	SkipPathPrefixes []string
	// QueryTokenSuffixes lists path suffixes where ?access_token= is accepted
	QueryTokenSuffixes []string
	// AllowHeaderIdentity trusts X-User-ID when no bearer token is sent
	AllowHeaderIdentity bool
	Logger              *zap.Logger
}

// DefaultJWTConfig returns default JWT middleware configuration
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService:         jwtService,
		SkipPaths:          []string{"/health", "/ready", "/api/v1/health", "/api/v1/system/ping"},
		SkipPathPrefixes:   []string{"/swagger"},
		QueryTokenSuffixes: []string{"/stream"},
	}
}

// JWTAuthMiddlewareWithConfig authenticates the caller and stores their user id
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if slices.Contains(cfg.SkipPaths, path) {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		token := bearerToken(c, cfg.QueryTokenSuffixes)
		if token == "" {
			if cfg.AllowHeaderIdentity {
				if id, err := uuid.Parse(c.GetHeader(HeaderUserID)); err == nil {
					setIdentity(c, id, nil)
					c.Next()
					return
				}
			}
			rejectAuth(c, log, auth.ErrInvalidToken, "Missing bearer token")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			rejectAuth(c, log, err, "Token validation failed")
			return
		}

		if cfg.TokenBlacklist != nil && claims.ID != "" {
			revoked, err := cfg.TokenBlacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				log.Error("Failed to check token blacklist", zap.String("jti", claims.ID), zap.Error(err))
			} else if revoked {
				rejectAuth(c, log, auth.ErrTokenRevoked, "Token has been revoked")
				return
			}
		}

		userID, _ := claims.UserUUID()
		setIdentity(c, userID, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context, querySuffixes []string) string {
	if header := c.GetHeader(AuthHeaderKey); strings.HasPrefix(header, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	}
	for _, suffix := range querySuffixes {
		if strings.HasSuffix(c.Request.URL.Path, suffix) {
			return c.Query(QueryTokenParam)
		}
	}
	return ""
}

func setIdentity(c *gin.Context, userID uuid.UUID, claims *auth.Claims) {
	if claims != nil {
		c.Set(JWTClaimsKey, claims)
	}
	c.Set(JWTUserIDKey, userID)
	c.Set("user_id", userID.String())

	ctx := c.Request.Context()
	ctx, reqLogger := logger.WithUserID(ctx, logger.GetGinLogger(c), userID.String())
	c.Set("logger", reqLogger)
	c.Request = c.Request.WithContext(ctx)
}

func rejectAuth(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code, msg := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, msg = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, msg = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrTokenNotYetValid), errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingUserID):
		code, msg = dto.ErrCodeTokenInvalid, "Invalid token"
	case errors.Is(err, auth.ErrInvalidToken) && message != "Missing bearer token":
		code, msg = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	abortWithCode(c, code, msg)
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, ok := c.Get(JWTClaimsKey); ok {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetUserID returns the authenticated caller
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	if v, ok := c.Get(JWTUserIDKey); ok {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}
