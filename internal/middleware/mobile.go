package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var mobilePattern = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile|phone|tablet|wpdesktop`)

// IsMobile reports whether ua looks like a phone or tablet browser.
func IsMobile(ua string) bool {
	return mobilePattern.MatchString(ua)
}

// MobileOptions configures MobileRedirect.
type MobileOptions struct {
	PhonePage    string
	AllowedPaths []string
	// Skip lists paths that are never redirected. An entry ending in "/"
	// covers everything below it; any other entry matches that exact path
	// and its subpaths, so "/go" does not cover "/gogames.html".
	Skip []string
}

// MobileRedirect sends mobile browsers asking for a page to the phone page
// and desktop browsers on the phone page back to /. Only GET and HEAD
// requests for HTML pages are considered.
func MobileRedirect(opts MobileOptions) gin.HandlerFunc {
	if opts.PhonePage == "" {
		opts.PhonePage = "/phone.html"
	}
	allowed := append([]string{opts.PhonePage}, opts.AllowedPaths...)

	return func(c *gin.Context) {
		if !isPageRequest(c, opts.Skip) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		onAllowed := false
		for _, p := range allowed {
			if path == p {
				onAllowed = true
				break
			}
		}

		mobile := IsMobile(c.Request.UserAgent())
		switch {
		case mobile && !onAllowed:
			c.Redirect(http.StatusFound, opts.PhonePage)
			c.Abort()
		case !mobile && path == opts.PhonePage:
			c.Redirect(http.StatusFound, "/")
			c.Abort()
		default:
			c.Next()
		}
	}
}

func isPageRequest(c *gin.Context, skip []string) bool {
	if c.Request.Method != "GET" && c.Request.Method != "HEAD" {
		return false
	}
	path := c.Request.URL.Path
	for _, p := range skip {
		if underPath(path, p) {
			return false
		}
	}
	// static assets keep their extension; pages are "/" or *.html
	last := path[strings.LastIndexByte(path, '/')+1:]
	return !strings.Contains(last, ".") || strings.HasSuffix(last, ".html")
}

func underPath(path, p string) bool {
	if strings.HasSuffix(p, "/") {
		return strings.HasPrefix(path, p)
	}
	return path == p || strings.HasPrefix(path, p+"/")
}
