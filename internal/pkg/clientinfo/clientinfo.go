// Package clientinfo extracts who is calling from request headers, with
// Cloudflare's headers taking priority over generic proxy headers.
package clientinfo

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/startpage-backend/internal/pkg/validator"
)

const Unknown = "unknown"

// ClientIP returns the caller address in priority order CF-Connecting-IP,
// CF-Real-IP, the first X-Forwarded-For hop, X-Real-IP and the socket
// address. Values that are not IPs are skipped.
func ClientIP(c *gin.Context) string {
	h := c.Request.Header
	candidates := []string{
		h.Get("CF-Connecting-IP"),
		h.Get("CF-Real-IP"),
		firstHop(h.Get("X-Forwarded-For")),
		h.Get("X-Real-IP"),
		c.ClientIP(),
	}
	for _, ip := range candidates {
		if n := validator.NormalizeIP(ip); n != "" {
			return n
		}
	}
	return Unknown
}

func firstHop(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// Cloudflare is the edge metadata Cloudflare attaches to proxied requests.
type Cloudflare struct {
	Ray                  string `json:"cfRay,omitempty"`
	ConnectingIP         string `json:"cfConnectingIP,omitempty"`
	IPCountry            string `json:"cfIPCountry,omitempty"`
	Visitor              string `json:"cfVisitor,omitempty"`
	CloudflareUID        string `json:"cfCloudflareUID,omitempty"`
	Worker               string `json:"cfWorker,omitempty"`
	CacheStatus          string `json:"cfCacheStatus,omitempty"`
	RequestID            string `json:"cfRequestID,omitempty"`
	EdgeRequestKeepAlive string `json:"cfEdgeRequestKeepAlive,omitempty"`
	WarpTagline          string `json:"cfWarpTagline,omitempty"`
	AccessClientID       string `json:"cfAccessClientID,omitempty"`
	AccessClientName     string `json:"cfAccessClientName,omitempty"`
	AccessClientEmail    string `json:"cfAccessClientEmail,omitempty"`
	TLSVersion           string `json:"cfTlsVersion,omitempty"`
	TLSCipher            string `json:"cfTlsCipher,omitempty"`
	HTTPProtocol         string `json:"cfHttpProtocol,omitempty"`
	BotScore             string `json:"cfBotScore,omitempty"`
	ThreatScore          string `json:"cfThreatScore,omitempty"`
}

// Country returns the CF-IPCountry value or "Unknown".
func (cf Cloudflare) Country() string {
	if cf.IPCountry == "" {
		return "Unknown"
	}
	return cf.IPCountry
}

// CloudflareHeaders reads every Cloudflare header present on h.
func CloudflareHeaders(h http.Header) Cloudflare {
	return Cloudflare{
		Ray:                  h.Get("CF-Ray"),
		ConnectingIP:         h.Get("CF-Connecting-IP"),
		IPCountry:            h.Get("CF-IPCountry"),
		Visitor:              h.Get("CF-Visitor"),
		CloudflareUID:        h.Get("CF-Cloudflare-UID"),
		Worker:               h.Get("CF-Worker"),
		CacheStatus:          h.Get("CF-Cache-Status"),
		RequestID:            h.Get("CF-Request-ID"),
		EdgeRequestKeepAlive: h.Get("CF-Edge-Request-Keep-Alive"),
		WarpTagline:          h.Get("CF-Warp-Tagline"),
		AccessClientID:       h.Get("CF-Access-Client-ID"),
		AccessClientName:     h.Get("CF-Access-Client-Name"),
		AccessClientEmail:    h.Get("CF-Access-Client-Email"),
		TLSVersion:           h.Get("CF-TLS-Version"),
		TLSCipher:            h.Get("CF-TLS-Cipher"),
		HTTPProtocol:         h.Get("CF-HTTP-Protocol"),
		BotScore:             h.Get("CF-Bot-Score"),
		ThreatScore:          h.Get("CF-Threat-Score"),
	}
}

// Request is everything the tracking endpoints record about a caller.
type Request struct {
	IP             string     `json:"ip"`
	UserAgent      string     `json:"userAgent,omitempty"`
	Referer        string     `json:"referer,omitempty"`
	AcceptLanguage string     `json:"acceptLanguage,omitempty"`
	AcceptEncoding string     `json:"acceptEncoding,omitempty"`
	Cloudflare     Cloudflare `json:"cloudflareData"`
}

// FromGin collects Request for the current call.
func FromGin(c *gin.Context) Request {
	h := c.Request.Header
	return Request{
		IP:             ClientIP(c),
		UserAgent:      h.Get("User-Agent"),
		Referer:        h.Get("Referer"),
		AcceptLanguage: h.Get("Accept-Language"),
		AcceptEncoding: h.Get("Accept-Encoding"),
		Cloudflare:     CloudflareHeaders(h),
	}
}
