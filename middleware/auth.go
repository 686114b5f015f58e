package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextRoleKey stores the role claim.
	ContextRoleKey = "role"
	// ContextClaimsKey stores the full *utils.Claims.
	ContextClaimsKey = "claims"
)

// AuthRequired ensures the request carries a valid bearer token.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, code, msg := bearerToken(ctx)
		if code != 0 {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			if utils.IsExpired(err) {
				utils.Error(ctx, http.StatusUnauthorized, 40104, "token expired")
				return
			}
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}

		setClaims(ctx, claims)
		ctx.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise continues anonymously.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if tokenString, code, _ := bearerToken(ctx); code == 0 {
			if claims, err := utils.ParseToken(tokenString); err == nil {
				setClaims(ctx, claims)
			}
		}
		ctx.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// RequireRole rejects authenticated callers whose role claim differs from role.
func RequireRole(role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, ok := CurrentClaims(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			return
		}
		if claims.Role != role {
			utils.Error(ctx, http.StatusForbidden, 40301, "insufficient permissions")
			return
		}
		ctx.Next()
	}
}

// CurrentClaims returns the claims attached by AuthRequired or OptionalAuth.
func CurrentClaims(ctx *gin.Context) (*utils.Claims, bool) {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok && claims != nil
}

// CurrentUserID returns the authenticated user id, or 0.
func CurrentUserID(ctx *gin.Context) uint {
	if claims, ok := CurrentClaims(ctx); ok {
		return claims.UserID
	}
	return 0
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(ctx *gin.Context) bool {
	claims, ok := CurrentClaims(ctx)
	return ok && claims.Role == models.RoleAdmin
}

func setClaims(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextClaimsKey, claims)
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextRoleKey, claims.Role)
}

func bearerToken(ctx *gin.Context) (string, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", 40101, "authorization header missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", 40102, "invalid authorization header format"
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", 40103, "empty bearer token"
	}
	return tokenString, 0, ""
}
