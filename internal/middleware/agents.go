package middleware

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

// BlockSuspiciousAgents rejects requests whose User-Agent contains any of
// patterns, compared case-insensitively. Requests without a User-Agent pass.
func BlockSuspiciousAgents(patterns []string, m *metrics.Metrics, log *logger.Logger) gin.HandlerFunc {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}

	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		for _, p := range lowered {
			if ua != "" && strings.Contains(ua, p) {
				m.RecordBlockedAgent()
				log.Warn("blocked suspicious user agent",
					zap.String("pattern", p),
					zap.String("ip", clientinfo.ClientIP(c)),
					zap.String("path", c.Request.URL.Path))
				response.ErrorWithCode(c, apperrors.ErrForbidden, "suspicious user agent detected")
				return
			}
		}
		c.Next()
	}
}

var attackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\.`),
	regexp.MustCompile(`/etc/passwd`),
	regexp.MustCompile(`/proc/self/environ`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)(java|vb)script:`),
	regexp.MustCompile(`(?i)on(load|error)=`),
	regexp.MustCompile(`(?i)eval\(`),
}

// BlockMaliciousPaths rejects request paths carrying traversal or script
// injection. Query strings are not inspected: search terms legitimately
// contain SQL and markup.
func BlockMaliciousPaths(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.EscapedPath()
		if p, err := url.PathUnescape(path); err == nil {
			path = p
		}
		for _, re := range attackPatterns {
			if re.MatchString(path) {
				log.Warn("blocked malicious request",
					zap.String("path", path),
					zap.String("ip", clientinfo.ClientIP(c)))
				response.ErrorWithCode(c, apperrors.ErrForbidden, "malicious request detected")
				return
			}
		}
		c.Next()
	}
}
