package turnstile

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

type VerifyRequest struct {
	Token  string          `json:"token"`
	IPData json.RawMessage `json:"ipData"`
}

type VerifyResponse struct {
	*Result
	ClientIP       string                `json:"clientIP"`
	CloudflareData clientinfo.Cloudflare `json:"cloudflareData"`
	Timestamp      time.Time             `json:"timestamp"`
	ErrorDetails   *ErrorDetails         `json:"errorDetails,omitempty"`
}

type ErrorDetails struct {
	Codes   []string `json:"codes"`
	Message string   `json:"message"`
}

type Service struct {
	verifier *Verifier
}

func NewService(v *Verifier) *Service {
	return &Service{verifier: v}
}

// RegisterRoutes mounts POST /verify-turnstile on an /api group.
func (s *Service) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/verify-turnstile", s.Verify)
}

// Verify 校验 Turnstile token；校验未通过返回 400
func (s *Service) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.HandleError(c, ErrMissingToken)
		return
	}

	meta := clientinfo.FromGin(c)
	ctx := c.Request.Context()
	res, err := s.verifier.Verify(ctx, req.Token, meta.IP)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	s.verifier.Audit(ctx, req.Token, res, meta, req.IPData)

	out := VerifyResponse{
		Result:         res,
		ClientIP:       meta.IP,
		CloudflareData: meta.Cloudflare,
		Timestamp:      time.Now().UTC(),
	}
	if !res.Success {
		out.ErrorDetails = &ErrorDetails{Codes: res.ErrorCodes, Message: res.Message()}
		response.ErrorWithData(c, apperrors.ErrTurnstileFailed, res.Message(), out)
		return
	}
	response.Success(c, out)
}
