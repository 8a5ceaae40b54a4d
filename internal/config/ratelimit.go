package config

import "time"

// RateLimitConfig configures the Redis token-bucket limiter placed in front
// of the passcode and booking endpoints.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" env-default:"60"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" env-default:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" env-default:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" env-default:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" env-default:"ip_user_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" env-default:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG" env-default:"false"`

	// OTPCapacity is the tighter bucket used for passcode issuing.
	OTPCapacity int `env:"RATE_LIMIT_OTP_CAPACITY" env-default:"5"`
	// OTPRefillEvery adds one passcode token per interval.
	OTPRefillEvery time.Duration `env:"RATE_LIMIT_OTP_REFILL_EVERY" env-default:"1m"`
}

// normalize clamps values that would make the Lua script misbehave.
func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	if c.OTPCapacity < 1 {
		c.OTPCapacity = 1
	}
	if c.OTPRefillEvery <= 0 {
		c.OTPRefillEvery = time.Minute
	}
	return c
}

// ForOTP derives the stricter passcode bucket from the general settings.
func (c RateLimitConfig) ForOTP() RateLimitConfig {
	o := c
	o.Capacity = c.OTPCapacity
	o.RefillTokens = 1
	o.RefillInterval = c.OTPRefillEvery
	o.Prefix = c.Prefix + ":otp"
	o.KeyStrategy = "ip_route"
	return o.normalize()
}
