package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ledger-api/pkg/errors"
	"github.com/noah-isme/tutor-ledger-api/pkg/response"
)

// RequireRoles lets callers holding one of the roles through.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return authorize(func(c *gin.Context, claims *models.JWTClaims) bool {
		_, ok := allowed[claims.Role]
		return ok
	})
}

// StaffOrSelf lets ledger staff through, and teachers on routes whose :id is
// their own user id.
func StaffOrSelf() gin.HandlerFunc {
	return authorize(func(c *gin.Context, claims *models.JWTClaims) bool {
		if claims.IsStaff() {
			return true
		}
		targetID := c.Param("id")
		return claims.Role == models.RoleTeacher && targetID != "" && targetID == claims.UserID
	})
}

func authorize(allow func(c *gin.Context, claims *models.JWTClaims) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !allow(c, claims) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
