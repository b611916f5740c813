package api

import "errors"

type CORSConfig struct {
	// TrustedOrigins lists origins echoed back in Access-Control-Allow-Origin.
	// "*" allows any origin; an empty list behaves as "*".
	TrustedOrigins   []string `yaml:"trusted_origins"`
	AllowCredentials *bool    `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

type Config struct {
	Addr      string          `yaml:"addr"`
	CertFile  string          `yaml:"cert_file"`
	KeyFile   string          `yaml:"key_file"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("api server address is required")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate limit requires positive requests_per_minute and burst")
	}

	return nil
}
