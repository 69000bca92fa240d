package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/navigation/biz"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
	"github.com/lk2023060901/startpage-backend/internal/visitor"
)

// NavigationService 导航 HTTP 服务
type NavigationService struct {
	nav    *biz.Navigator
	logger *logger.Logger
}

func NewNavigationService(nav *biz.Navigator, log *logger.Logger) *NavigationService {
	return &NavigationService{nav: nav, logger: log}
}

// RegisterRoutes mounts the JSON endpoints on an /api/v1 group.
func (s *NavigationService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/navigate", s.Navigate)
	r.GET("/navigate/last", s.LastDestination)

	proxy := r.Group("/proxy")
	{
		proxy.GET("/config", s.ProxyConfig)
		proxy.GET("/decode", s.DecodeTarget)
	}
}

// RegisterRedirect mounts GET /go?url=, the shareable entry point that
// mirrors opening the page with a url parameter.
func (s *NavigationService) RegisterRedirect(r gin.IRoutes) {
	r.GET("/go", s.Redirect)
}

// Navigate 解析输入并返回目标地址
func (s *NavigationService) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	trigger := biz.Trigger(req.Trigger)
	if req.Trigger == "" {
		trigger = biz.TriggerSubmit
	}

	d, err := s.nav.Navigate(c.Request.Context(), visitor.ID(c), req.Input, trigger)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, d)
}

// Redirect 处理 /go?url=，302 跳转到目标
func (s *NavigationService) Redirect(c *gin.Context) {
	d, err := s.nav.Navigate(c.Request.Context(), visitor.ID(c), c.Query("url"), biz.TriggerURLParam)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	c.Redirect(http.StatusFound, d.Target)
}

// LastDestination 返回访客最近一次的目标
func (s *NavigationService) LastDestination(c *gin.Context) {
	d, err := s.nav.Last(c.Request.Context(), visitor.ID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, d)
}

// ProxyConfig 返回访客生效的代理配置
func (s *NavigationService) ProxyConfig(c *gin.Context) {
	response.Success(c, s.nav.ProxyFor(c.Request.Context(), visitor.ID(c)))
}

func (s *NavigationService) DecodeTarget(c *gin.Context) {
	target := c.Query("target")
	if target == "" {
		response.BadRequest(c, "target is required")
		return
	}
	dest, err := s.nav.Decode(c.Request.Context(), visitor.ID(c), target)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, DecodeResponse{Target: target, URL: dest})
}
