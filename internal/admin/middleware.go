package admin

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

const claimsKey = "admin_claims"

// RequireAdmin 管理员认证中间件. The token comes from the Authorization
// header, or the token query parameter for links opened from the dashboard.
func RequireAdmin(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			response.HandleError(c, ErrDisabled)
			return
		}

		var token string
		if h := c.GetHeader("Authorization"); h != "" {
			t, err := ExtractTokenFromHeader(h)
			if err != nil {
				response.ErrorWithCode(c, apperrors.ErrUnauthorized, err.Error())
				return
			}
			token = t
		} else if token = c.Query("token"); token == "" {
			response.ErrorWithCode(c, apperrors.ErrUnauthorized, "missing authorization")
			return
		}

		claims, err := a.Verify(token)
		if err != nil {
			a.logger.WithContext(c.Request.Context()).Warn("invalid admin token",
				zap.Error(err),
				zap.String("ip", clientinfo.ClientIP(c)))
			response.HandleError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAdmin.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
