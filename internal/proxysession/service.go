package proxysession

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
	"github.com/lk2023060901/startpage-backend/internal/visitor"
)

type SaveRequest struct {
	Host    string          `json:"host" binding:"required"`
	Session json.RawMessage `json:"session" binding:"required"`
}

type HostRequest struct {
	Host string `json:"host" binding:"required"`
}

type ApplyResponse struct {
	Host    string `json:"host"`
	Applied bool   `json:"applied"`
}

// Service exposes the endpoints used by the proxy page's session panel.
type Service struct {
	uc *UseCase
}

func NewService(uc *UseCase) *Service {
	return &Service{uc: uc}
}

// RegisterRoutes mounts the /uv endpoints on the root engine.
func (s *Service) RegisterRoutes(r gin.IRoutes) {
	r.POST("/uv/save-session", s.Save)
	r.GET("/uv/load-session", s.Load)
	r.POST("/uv/apply-session", s.Apply)
	r.GET("/uv/sessions", s.List)
	r.DELETE("/uv/session", s.Delete)
}

func (s *Service) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sess, err := s.uc.Save(c.Request.Context(), visitor.ID(c), req.Host, req.Session)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "session saved", sess)
}

func (s *Service) Load(c *gin.Context) {
	sess, err := s.uc.Load(c.Request.Context(), visitor.ID(c), c.Query("host"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, sess)
}

func (s *Service) Apply(c *gin.Context) {
	var req HostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, err := s.uc.Apply(c.Request.Context(), visitor.ID(c), req.Host)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, ApplyResponse{Host: req.Host, Applied: ok})
}

func (s *Service) List(c *gin.Context) {
	entries, err := s.uc.List(c.Request.Context(), visitor.ID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, entries)
}

func (s *Service) Delete(c *gin.Context) {
	if err := s.uc.Delete(c.Request.Context(), visitor.ID(c), c.Query("host")); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "session deleted", nil)
}
