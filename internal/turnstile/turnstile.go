// Package turnstile verifies Cloudflare Turnstile tokens server side.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	analyticsbiz "github.com/lk2023060901/startpage-backend/internal/analytics/biz"
	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var (
	ErrMissingToken  = apperrors.New(apperrors.ErrTurnstileMissingToken)
	ErrFailed        = apperrors.New(apperrors.ErrTurnstileFailed)
	ErrUnavailable   = apperrors.New(apperrors.ErrTurnstileUnavailable)
	ErrNotConfigured = apperrors.New(apperrors.ErrTurnstileNotConfigured)
)

var errorMessages = map[string]string{
	"missing-input-secret":   "The secret parameter is missing",
	"invalid-input-secret":   "The secret parameter is invalid or malformed",
	"missing-input-response": "The response parameter is missing",
	"invalid-input-response": "The response parameter is invalid or malformed",
	"bad-request":            "The request is invalid or malformed",
	"timeout-or-duplicate":   "The response is no longer valid: either is too old or has been used previously",
	"internal-error":         "An internal error happened while validating the response",
}

// ErrorMessage turns siteverify error codes into one readable sentence.
func ErrorMessage(codes []string) string {
	if len(codes) == 0 {
		return "Unknown error"
	}
	msgs := make([]string, len(codes))
	for i, code := range codes {
		if m, ok := errorMessages[code]; ok {
			msgs[i] = m
		} else {
			msgs[i] = "Unknown error: " + code
		}
	}
	return strings.Join(msgs, ", ")
}

type Config struct {
	SecretKey  string
	VerifyURL  string
	Timeout    time.Duration
	MaxRetries int
}

// Result is the parsed siteverify answer.
type Result struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"errorCodes"`
	ChallengeTS string   `json:"challengeTs,omitempty"`
	Hostname    string   `json:"hostname,omitempty"`
	Action      string   `json:"action,omitempty"`
	CData       string   `json:"cdata,omitempty"`
}

// Message describes a failed verification.
func (r *Result) Message() string {
	if r.Success {
		return ""
	}
	return ErrorMessage(r.ErrorCodes)
}

// Recorder receives verification counters and the audit event. The
// analytics use case implements it.
type Recorder interface {
	Count(ctx context.Context, names ...string)
	RecordEvent(ctx context.Context, req *analyticsbiz.EventRequest, meta clientinfo.Request) (*analyticsbiz.Event, error)
}

type Verifier struct {
	cfg      Config
	http     *resty.Client
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewVerifier 创建 Turnstile 校验器. recorder and m may be nil.
func NewVerifier(cfg Config, recorder Recorder, m *metrics.Metrics, log *logger.Logger) *Verifier {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(max(cfg.MaxRetries, 0)).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Verifier{
		cfg:      cfg,
		http:     client,
		recorder: recorder,
		metrics:  m,
		logger:   log.Named("turnstile"),
	}
}

// Verify checks token with siteverify. A rejected token is not an error:
// the Result says why. Errors mean the check could not be made.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (*Result, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if v.cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	body := map[string]string{"secret": v.cfg.SecretKey, "response": token}
	if remoteIP != "" && remoteIP != clientinfo.Unknown {
		body["remoteip"] = remoteIP
	}

	start := time.Now()
	resp, err := v.http.R().SetContext(ctx).SetBody(body).Post(v.cfg.VerifyURL)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("siteverify returned %s", resp.Status())
	}
	if err == nil && !gjson.ValidBytes(resp.Body()) {
		err = fmt.Errorf("siteverify returned invalid JSON")
	}
	v.metrics.RecordUpstream("turnstile", err, time.Since(start))
	if err != nil {
		v.logger.Error("siteverify request failed", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrTurnstileUnavailable)
	}

	return parseResult(resp.Body()), nil
}

func parseResult(raw []byte) *Result {
	doc := gjson.ParseBytes(raw)
	r := &Result{
		Success:     doc.Get("success").Bool(),
		ErrorCodes:  []string{},
		ChallengeTS: doc.Get("challenge_ts").String(),
		Hostname:    doc.Get("hostname").String(),
		Action:      doc.Get("action").String(),
		CData:       doc.Get("cdata").String(),
	}
	for _, code := range doc.Get("error-codes").Array() {
		r.ErrorCodes = append(r.ErrorCodes, code.String())
	}
	return r
}

// truncate keeps the first 20 characters of a token for audit logs.
func truncate(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}

// Audit counts the verification and stores a redacted event.
func (v *Verifier) Audit(ctx context.Context, token string, res *Result, meta clientinfo.Request, ipData json.RawMessage) {
	if v.recorder == nil || res == nil {
		return
	}
	status := analyticsbiz.CounterTurnstileFailure
	if res.Success {
		status = analyticsbiz.CounterTurnstileSuccess
	}
	v.recorder.Count(ctx, analyticsbiz.CounterTurnstileVerification, status)

	data, err := json.Marshal(struct {
		Token string `json:"token"`
		*Result
		IPData json.RawMessage `json:"ipData,omitempty"`
	}{truncate(token), res, ipData})
	if err != nil {
		return
	}
	if _, err := v.recorder.RecordEvent(ctx, &analyticsbiz.EventRequest{Type: "turnstile", Data: data}, meta); err != nil {
		v.logger.Warn("record turnstile event failed", zap.Error(err))
	}
}
