package service

// EdgeLocation is the subset of Cloudflare data echoed back to trackers.
type EdgeLocation struct {
	Country string `json:"country,omitempty"`
	Ray     string `json:"cfRay,omitempty"`
}

// TrackResponse /api/track 响应
type TrackResponse struct {
	Success        bool         `json:"success"`
	SessionID      string       `json:"sessionId"`
	CloudflareData EdgeLocation `json:"cloudflareData"`
	Message        string       `json:"message"`
}

// AnalyticsResponse /api/analytics 响应
type AnalyticsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	IP      string `json:"ip"`
	Country string `json:"country"`
}

// CFTrackResponse /api/cf-track 响应
type CFTrackResponse struct {
	Success        bool   `json:"success"`
	SessionID      string `json:"sessionId,omitempty"`
	Type           string `json:"type"`
	CloudflareData any    `json:"cloudflareData"`
	Message        string `json:"message"`
}
