package constants

import "time"

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    10 * time.Minute, // 429 from either provider
	HealthCheckInterval: 5 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
	KeyPrefix    string
}{
	ReadyTimeout: 5 * time.Second,
	KeyPrefix:    "adgenius:",
}

var VideoDefaults = struct {
	NumberOfVideos int32
	Resolution     string
	PollInterval   time.Duration
	MaxWait        time.Duration
	MIMEType       string
	MaxBytes       int64
}{
	NumberOfVideos: 1,
	Resolution:     "720p",
	PollInterval:   5 * time.Second,
	MaxWait:        15 * time.Minute,
	MIMEType:       "video/mp4",
	MaxBytes:       256 << 20,
}

var ImporterConfig = struct {
	Timeout        time.Duration
	MaxBodyBytes   int64
	UserAgent      string
	MaxDescription int
	MaxRedirects   int
}{
	Timeout:        10 * time.Second,
	MaxBodyBytes:   2 << 20,
	UserAgent:      "AdGeniusBot/1.0 (+product-import)",
	MaxDescription: 1000,
	MaxRedirects:   3,
}

var SessionConfig = struct {
	SubscriberBuffer int
	AnalysisTimeout  time.Duration
	VideoJobMargin   time.Duration
}{
	SubscriberBuffer: 8,
	AnalysisTimeout:  10 * time.Minute,
	VideoJobMargin:   time.Minute,
}

var WebSocketConfig = struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
}{
	WriteTimeout: 10 * time.Second,
	PingInterval: 30 * time.Second,
	PongWait:     60 * time.Second,
}

// User-facing messages shown by the form.
var Messages = struct {
	ValidationMissingFields string
	UnusableResponse        string
	AnalysisFailed          string
	VideoFailed             string
}{
	ValidationMissingFields: "Vui lòng điền tên và mô tả sản phẩm.",
	UnusableResponse:        "Không thể xử lý phản hồi từ AI. Vui lòng thử lại.",
	AnalysisFailed:          "Phân tích thất bại. Vui lòng kiểm tra lại thông tin hoặc API Key.",
	VideoFailed:             "Tạo video thất bại. Đảm bảo API Key của bạn có quyền truy cập mô hình Veo.",
}
