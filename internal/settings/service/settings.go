package service

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
	"github.com/lk2023060901/startpage-backend/internal/resolver"
	"github.com/lk2023060901/startpage-backend/internal/settings/biz"
	"github.com/lk2023060901/startpage-backend/internal/visitor"
)

// SettingsService 设置 HTTP 服务
type SettingsService struct {
	uc     *biz.SettingsUseCase
	logger *logger.Logger
}

func NewSettingsService(uc *biz.SettingsUseCase, log *logger.Logger) *SettingsService {
	return &SettingsService{uc: uc, logger: log}
}

// RegisterRoutes mounts the settings endpoints on an /api/v1 group.
func (s *SettingsService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", s.GetSettings)
	r.PUT("/settings", s.UpdateSettings)
	r.DELETE("/settings", s.ResetSettings)
}

// GetSettings 获取当前访客的设置
func (s *SettingsService) GetSettings(c *gin.Context) {
	vid := visitor.ID(c)
	st, err := s.uc.Get(c.Request.Context(), vid)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, s.toResponse(c, vid, st))
}

// UpdateSettings 部分更新设置
func (s *SettingsService) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	vid := visitor.ID(c)
	st, err := s.uc.Update(c.Request.Context(), vid, req.toPatch())
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, s.toResponse(c, vid, st))
}

// ResetSettings 恢复默认设置
func (s *SettingsService) ResetSettings(c *gin.Context) {
	if err := s.uc.Reset(c.Request.Context(), visitor.ID(c)); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "settings reset", nil)
}

func (s *SettingsService) toResponse(c *gin.Context, vid string, st *biz.Settings) *SettingsResponse {
	engine := s.uc.EngineProvider(c.Request.Context(), vid)()
	resp := &SettingsResponse{
		DefaultEngine:      st.DefaultEngine,
		ProxyPrefix:        st.ProxyPrefix,
		ProxyBare:          st.ProxyBare,
		PanicKey:           st.PanicKey,
		HideNavbarOnSearch: st.HideNavbarOnSearch,
		EffectiveEngine:    resolver.EngineHome(engine),
		SearchTemplate:     resolver.BuildTemplate(engine),
	}
	if !st.UpdatedAt.IsZero() {
		t := st.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}
