package service

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/lk2023060901/startpage-backend/internal/analytics/biz"
	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

// maxBodyBytes caps tracker payloads.
const maxBodyBytes = 64 << 10

// AnalyticsService 访问统计 HTTP 服务
type AnalyticsService struct {
	uc     *biz.AnalyticsUseCase
	logger *logger.Logger
}

func NewAnalyticsService(uc *biz.AnalyticsUseCase, log *logger.Logger) *AnalyticsService {
	return &AnalyticsService{uc: uc, logger: log}
}

// RegisterRoutes mounts the tracker endpoints on an /api group. The
// dashboard reads are wrapped in guard.
func (s *AnalyticsService) RegisterRoutes(r *gin.RouterGroup, guard gin.HandlerFunc) {
	r.POST("/track", s.Track)
	r.POST("/analytics", s.Analytics)
	r.POST("/cf-track", s.CFTrack)

	dash := r.Group("/analytics", guard)
	{
		dash.GET("/summary", s.Summary)
		dash.GET("/detailed", s.Detailed)
	}
}

// Track 记录页面访问
func (s *AnalyticsService) Track(c *gin.Context) {
	var req biz.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.HandleError(c, biz.ErrInvalidPayload)
		return
	}

	meta := clientinfo.FromGin(c)
	v, err := s.uc.TrackVisit(c.Request.Context(), &req, meta)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, TrackResponse{
		Success:        true,
		SessionID:      v.SessionID,
		CloudflareData: EdgeLocation{Country: meta.Cloudflare.IPCountry, Ray: meta.Cloudflare.Ray},
		Message:        "Tracking data recorded successfully",
	})
}

// Analytics accepts a free-form event: "event" names it (default
// "pageview"), "page" and "sessionId" are optional, and the whole body is
// kept as the event data.
func (s *AnalyticsService) Analytics(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		response.HandleError(c, biz.ErrInvalidPayload)
		return
	}

	body := gjson.ParseBytes(raw)
	req := &biz.EventRequest{
		Type:      body.Get("event").String(),
		SessionID: body.Get("sessionId").String(),
		Page:      body.Get("page").String(),
		Data:      raw,
	}
	if req.Type == "" {
		req.Type = "pageview"
	}
	if req.Page == "" {
		req.Page = "unknown"
	}

	meta := clientinfo.FromGin(c)
	if _, err := s.uc.RecordEvent(c.Request.Context(), req, meta); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, AnalyticsResponse{
		Success: true,
		Message: "Analytics data received",
		IP:      meta.IP,
		Country: meta.Cloudflare.Country(),
	})
}

// CFTrack 记录 Cloudflare 相关事件
func (s *AnalyticsService) CFTrack(c *gin.Context) {
	var req biz.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.HandleError(c, biz.ErrInvalidPayload)
		return
	}

	meta := clientinfo.FromGin(c)
	e, err := s.uc.RecordEvent(c.Request.Context(), &req, meta)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, CFTrackResponse{
		Success:        true,
		SessionID:      e.SessionID,
		Type:           e.Type,
		CloudflareData: meta.Cloudflare,
		Message:        "Cloudflare tracking data recorded successfully",
	})
}

// Summary 统计概览
func (s *AnalyticsService) Summary(c *gin.Context) {
	sum, err := s.uc.Summary(c.Request.Context())
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, sum)
}

// Detailed 明细数据，支持 limit/offset/type
func (s *AnalyticsService) Detailed(c *gin.Context) {
	q := biz.DetailQuery{Type: c.Query("type")}
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	q.Offset, _ = strconv.Atoi(c.Query("offset"))

	d, err := s.uc.Detailed(c.Request.Context(), q)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, d)
}
