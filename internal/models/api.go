package models

import (
	"time"
)

// BatchRequest represents a batch PAN lookup request
type BatchRequest struct {
	PANs []string `json:"pans" binding:"required,min=1,max=100" example:"[\"301234567\",\"601234567\"]"`
}

// BatchResponse represents a batch PAN lookup response
type BatchResponse struct {
	Results    []*Record `json:"results"`
	Total      int       `json:"total" example:"2"`
	Success    int       `json:"success" example:"2"`
	Errors     int       `json:"errors" example:"0"`
	DurationMs int64     `json:"duration_ms" example:"5200"`
	Timestamp  time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// ImageCaptchaRequest carries an image captcha as a data URI or bare base64
type ImageCaptchaRequest struct {
	Image string `json:"image" binding:"required" example:"data:image/png;base64,iVBORw0KGgo..."`
}

// TextCaptchaRequest carries an arithmetic captcha prompt
type TextCaptchaRequest struct {
	Prompt string `json:"prompt" binding:"required" example:"What is 3 plus 4"`
}

// CaptchaResponse is the answer to a captcha challenge
type CaptchaResponse struct {
	Kind       string    `json:"kind" example:"image"`
	Solution   string    `json:"solution" example:"B1234C"`
	DurationMs int64     `json:"duration_ms" example:"120"`
	Timestamp  time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Invalid PAN format"`
	Message   string    `json:"message" example:"PAN must be alphanumeric"`
	Code      string    `json:"code,omitempty" example:"INVALID_PAN"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Path      string    `json:"path" example:"/api/v1/pan/301234567"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status    string    `json:"status" example:"healthy"`
	LastCheck time.Time `json:"last_check" example:"2024-01-15T10:30:00Z"`
	Error     string    `json:"error,omitempty"`
}

// MetricsResponse represents metrics response
type MetricsResponse struct {
	Lookups   LookupMetrics  `json:"lookups"`
	Browser   BrowserMetrics `json:"browser"`
	System    SystemMetrics  `json:"system"`
	Timestamp time.Time      `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// LookupMetrics counts fetch controller outcomes
type LookupMetrics struct {
	Total       int64   `json:"total" example:"1500"`
	Success     int64   `json:"success" example:"1450"`
	Errors      int64   `json:"errors" example:"50"`
	WallWaits   int64   `json:"wall_waits" example:"12"`
	CacheHits   int64   `json:"cache_hits" example:"300"`
	SuccessRate float64 `json:"success_rate" example:"96.67"`
}

// BrowserMetrics represents browser metrics
type BrowserMetrics struct {
	TotalBrowsers   int `json:"total_browsers" example:"2"`
	HealthyBrowsers int `json:"healthy_browsers" example:"2"`
	Available       int `json:"available" example:"1"`
}

// SystemMetrics represents system metrics
type SystemMetrics struct {
	MemoryUsage float64 `json:"memory_usage" example:"512.5"`
	Goroutines  int     `json:"goroutines" example:"125"`
}
