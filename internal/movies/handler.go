package movies

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

// Handler serves /api/v1/movies.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/movies")
	g.GET("/home", h.Home)
	g.GET("/search", h.Search)
	g.GET("/list/:kind", h.List)
	g.GET("/popular", h.list(KindPopular))
	g.GET("/top_rated", h.list(KindTopRated))
	g.GET("/upcoming", h.list(KindUpcoming))
	g.GET("/:id", h.Details)
	g.GET("/:id/recommendations", h.Recommendations)
}

func pageParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("page", "1")
	page, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(c, "page must be a number")
		return 0, false
	}
	return page, true
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid movie id")
		return 0, false
	}
	return id, true
}

func (h *Handler) Home(c *gin.Context) {
	home, err := h.svc.Home(c.Request.Context())
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, home)
}

func (h *Handler) List(c *gin.Context) {
	h.list(Kind(c.Param("kind")))(c)
}

func (h *Handler) list(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageParam(c)
		if !ok {
			return
		}
		p, err := h.svc.List(c.Request.Context(), kind, page)
		if err != nil {
			response.HandleError(c, err)
			return
		}
		response.Success(c, p)
	}
}

func (h *Handler) Search(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	p, err := h.svc.Search(c.Request.Context(), c.Query("q"), page)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, p)
}

func (h *Handler) Details(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	d, err := h.svc.Details(c.Request.Context(), id)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, d)
}

func (h *Handler) Recommendations(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	p, err := h.svc.Recommendations(c.Request.Context(), id)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, p)
}
