package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

type LoginRequest struct {
	Password string `json:"password" binding:"required,max=256"`
}

type SessionInfo struct {
	Subject   string `json:"subject"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

type Service struct {
	auth *Authenticator
}

func NewService(a *Authenticator) *Service {
	return &Service{auth: a}
}

// RegisterRoutes mounts login and session check on an /api/admin group.
func (s *Service) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", s.Login)
	r.GET("/session", RequireAdmin(s.auth), s.Session)
}

// Login 管理员登录
func (s *Service) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sess, err := s.auth.Login(c.Request.Context(), req.Password, clientinfo.ClientIP(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, sess)
}

func (s *Service) Session(c *gin.Context) {
	claims, _ := ClaimsFrom(c)
	info := SessionInfo{Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Unix()
	}
	response.Success(c, info)
}
