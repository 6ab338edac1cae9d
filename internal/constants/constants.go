package constants

import "time"

// Persisted workspace keys. The names match the browser build so exported
// backups stay interchangeable.
var StoreKeys = struct {
	Webhook      string
	Experts      string
	ActiveExpert string
	History      string
}{
	Webhook:      "n8nWebhook",
	Experts:      "experts",
	ActiveExpert: "activeExpertId",
	History:      "analysisHistory",
}

var HistoryConfig = struct {
	MaxEntries int
}{
	MaxEntries: 50,
}

var ExpertConfig = struct {
	DefaultSlots int
	NamePrefix   string
}{
	DefaultSlots: 3,
	NamePrefix:   "Expert ",
}

var Timeouts = struct {
	Analysis       time.Duration
	FollowUp       time.Duration
	TestConnection time.Duration
	PublicAPI      time.Duration
	Navigation     time.Duration
	PhotoFetch     time.Duration
}{
	Analysis:       240 * time.Second, // remote AI work is slow
	FollowUp:       60 * time.Second,
	TestConnection: 15 * time.Second,
	PublicAPI:      10 * time.Second,
	Navigation:     30 * time.Second,
	PhotoFetch:     15 * time.Second,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
	KeyPrefix    string
}{
	ReadyTimeout: 5 * time.Second,
	KeyPrefix:    "leadanalyzer:",
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    1 * time.Hour, // 429 only
	HealthCheckInterval: 10 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var InstagramConfig = struct {
	BaseURL        string
	ProfileInfoURL string
	AppID          string
	UserAgent      string
	MaxRecentPosts int
	HeaderWait     time.Duration
	CacheTTL       time.Duration
	MaxPhotoBytes  int64
}{
	BaseURL:        "https://www.instagram.com",
	ProfileInfoURL: "https://www.instagram.com/api/v1/users/web_profile_info/",
	AppID:          "936619743392459",
	UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	MaxRecentPosts: 12,
	HeaderWait:     10 * time.Second,
	CacheTTL:       30 * time.Minute,
	MaxPhotoBytes:  5 << 20,
}

var AvatarConfig = struct {
	PlaceholderURL string
}{
	PlaceholderURL: "https://ui-avatars.com/api/?name=%s&background=8b5cf6&color=fff&size=150&bold=true",
}

var StringLimits = struct {
	BodyPreview int
	BioHook     int
	LogPayload  int
}{
	BodyPreview: 100,
	BioHook:     50,
	LogPayload:  200,
}

var ComposerConfig = struct {
	LargeAudience   int
	NamePlaceholder string
	DefaultName     string
}{
	LargeAudience:   10000,
	NamePlaceholder: "{nome}",
	DefaultName:     "Nome",
}
