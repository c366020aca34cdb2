package config

import "time"

type Settings struct {
	// 禁止从公网访问
	NotAllowWanAccess bool
	// 日志级别 debug/info/warn/error
	LogLevel string
	// 内存中保留的日志条数
	LogMaxSize int
	Retry      Retry
	RateLimit  RateLimit
}

// Retry 厂商接口重试策略, MaxAttempts 为 1 时不重试
type Retry struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RateLimit 入站请求的单 IP 限流
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

func DefaultSettings() Settings {
	return Settings{
		LogLevel:   "info",
		LogMaxSize: 500,
		Retry: Retry{
			MaxAttempts:     1,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		RateLimit: RateLimit{
			RequestsPerSecond: 5,
			Burst:             20,
		},
	}
}

// Normalize 补齐缺省值
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if s.LogLevel == "" {
		s.LogLevel = def.LogLevel
	}
	if s.LogMaxSize <= 0 {
		s.LogMaxSize = def.LogMaxSize
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if s.Retry.InitialInterval <= 0 {
		s.Retry.InitialInterval = def.Retry.InitialInterval
	}
	if s.Retry.MaxInterval <= 0 {
		s.Retry.MaxInterval = def.Retry.MaxInterval
	}
	if s.RateLimit.RequestsPerSecond <= 0 {
		s.RateLimit.RequestsPerSecond = def.RateLimit.RequestsPerSecond
	}
	if s.RateLimit.Burst <= 0 {
		s.RateLimit.Burst = def.RateLimit.Burst
	}
	return s
}
