package errors

import (
	"fmt"
	"net/http"
)

// Code ties a business code to its HTTP status and default message.
type Code struct {
	Code    int
	Status  int
	Message string
}

const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008
	ErrStorage         = 1009

	// Settings errors (2000-2999)
	ErrSettingsInvalidEngine   = 2000
	ErrSettingsInvalidPanicKey = 2001
	ErrSettingsInvalidPrefix   = 2002
	ErrSettingsInvalidBare     = 2003

	// Navigation errors (3000-3999)
	ErrNavEmptyInput     = 3000
	ErrNavInvalidTrigger = 3001
	ErrNavNoLastURL      = 3002
	ErrNavDecodeFailed   = 3003

	// Analytics errors (4000-4999)
	ErrAnalyticsInvalidPayload = 4000
	ErrAnalyticsDisabled       = 4001

	// Turnstile errors (5000-5999)
	ErrTurnstileMissingToken  = 5000
	ErrTurnstileFailed        = 5001
	ErrTurnstileUnavailable   = 5002
	ErrTurnstileNotConfigured = 5003

	// Proxy session errors (6000-6999)
	ErrProxySessionInvalidHost = 6000
	ErrProxySessionNotFound    = 6001
	ErrProxySessionTooLarge    = 6002

	// Movie errors (7000-7999)
	ErrMoviesUpstream      = 7000
	ErrMoviesNotFound      = 7001
	ErrMoviesNotConfigured = 7002

	// Admin errors (8000-8999)
	ErrAdminInvalidPassword = 8000
	ErrAdminInvalidToken    = 8001
	ErrAdminDisabled        = 8002
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},
	ErrStorage:         {ErrStorage, http.StatusInternalServerError, "Storage operation failed"},

	ErrSettingsInvalidEngine:   {ErrSettingsInvalidEngine, http.StatusBadRequest, "Default engine must be an http(s) URL without a query"},
	ErrSettingsInvalidPanicKey: {ErrSettingsInvalidPanicKey, http.StatusBadRequest, "Panic key is too long"},
	ErrSettingsInvalidPrefix:   {ErrSettingsInvalidPrefix, http.StatusBadRequest, "Proxy prefix must start and end with /"},
	ErrSettingsInvalidBare:     {ErrSettingsInvalidBare, http.StatusBadRequest, "Bare server must be a URL or an absolute path"},

	ErrNavEmptyInput:     {ErrNavEmptyInput, http.StatusBadRequest, "Nothing to navigate to"},
	ErrNavInvalidTrigger: {ErrNavInvalidTrigger, http.StatusBadRequest, "Unknown navigation trigger"},
	ErrNavNoLastURL:      {ErrNavNoLastURL, http.StatusNotFound, "No previous navigation"},
	ErrNavDecodeFailed:   {ErrNavDecodeFailed, http.StatusBadRequest, "Proxied path could not be decoded"},

	ErrAnalyticsInvalidPayload: {ErrAnalyticsInvalidPayload, http.StatusBadRequest, "Invalid analytics payload"},
	ErrAnalyticsDisabled:       {ErrAnalyticsDisabled, http.StatusServiceUnavailable, "Analytics is disabled"},

	ErrTurnstileMissingToken:  {ErrTurnstileMissingToken, http.StatusBadRequest, "Turnstile token is required"},
	ErrTurnstileFailed:        {ErrTurnstileFailed, http.StatusBadRequest, "Turnstile verification failed"},
	ErrTurnstileUnavailable:   {ErrTurnstileUnavailable, http.StatusInternalServerError, "Turnstile verification service error"},
	ErrTurnstileNotConfigured: {ErrTurnstileNotConfigured, http.StatusInternalServerError, "Turnstile is not configured"},

	ErrProxySessionInvalidHost: {ErrProxySessionInvalidHost, http.StatusBadRequest, "Invalid host"},
	ErrProxySessionNotFound:    {ErrProxySessionNotFound, http.StatusNotFound, "No saved session for host"},
	ErrProxySessionTooLarge:    {ErrProxySessionTooLarge, http.StatusRequestEntityTooLarge, "Session data too large"},

	ErrMoviesUpstream:      {ErrMoviesUpstream, http.StatusBadGateway, "Movie database request failed"},
	ErrMoviesNotFound:      {ErrMoviesNotFound, http.StatusNotFound, "Movie not found"},
	ErrMoviesNotConfigured: {ErrMoviesNotConfigured, http.StatusServiceUnavailable, "Movie database is not configured"},

	ErrAdminInvalidPassword: {ErrAdminInvalidPassword, http.StatusUnauthorized, "Invalid password"},
	ErrAdminInvalidToken:    {ErrAdminInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	ErrAdminDisabled:        {ErrAdminDisabled, http.StatusForbidden, "Admin access is not configured"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
