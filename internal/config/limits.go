package config

import "time"

type Limits struct {
	// MaxConcurrentRequests bounds per-artifact fan-out.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests" validate:"min=1,max=32"`
	// MaxRetries applies to rate-limit, network and 5xx failures.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
	// MalformedRetries re-asks with a stricter request when no JSON object
	// could be recovered.
	MalformedRetries int             `yaml:"malformed_retries" validate:"min=0,max=5"`
	StepTimeout      time.Duration   `yaml:"step_timeout" validate:"min=10s,max=2h"`
	RateLimit        RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxConcurrentRequests: 3,
		MaxRetries:            3,
		MalformedRetries:      1,
		StepTimeout:           10 * time.Minute,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
	}
}
