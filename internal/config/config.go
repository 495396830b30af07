package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string `env:"RABBITMQ_URL,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	GatewayURL          string `env:"GATEWAY_URL,required=true"`
	GatewayAPIKey       string `env:"GATEWAY_API_KEY,required=true"`
	ProviderTimeoutSec  int    `env:"PROVIDER_TIMEOUT_SEC,default=10"`
	ProviderCacheTTLSec int    `env:"PROVIDER_CACHE_TTL_SEC,default=300"`
	TemplateCacheTTLSec int    `env:"TEMPLATE_CACHE_TTL_SEC,default=600"`
	FeeRuleCacheTTLSec  int    `env:"FEE_RULE_CACHE_TTL_SEC,default=300"`
	BudgetCacheTTLSec   int    `env:"BUDGET_CACHE_TTL_SEC,default=60"`
	ReferenceTTLSec     int    `env:"REFERENCE_TTL_SEC,default=86400"`
	AuditQueueSize      int    `env:"AUDIT_QUEUE_SIZE,default=1024"`
	RateLimitPerSec     int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	ConsumerPrefetch    int    `env:"CONSUMER_PREFETCH,default=16"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSec) * time.Second
}

func (c *Config) ProviderCacheTTL() time.Duration {
	return time.Duration(c.ProviderCacheTTLSec) * time.Second
}

func (c *Config) TemplateCacheTTL() time.Duration {
	return time.Duration(c.TemplateCacheTTLSec) * time.Second
}

func (c *Config) FeeRuleCacheTTL() time.Duration {
	return time.Duration(c.FeeRuleCacheTTLSec) * time.Second
}

func (c *Config) BudgetCacheTTL() time.Duration {
	return time.Duration(c.BudgetCacheTTLSec) * time.Second
}

func (c *Config) ReferenceTTL() time.Duration {
	return time.Duration(c.ReferenceTTLSec) * time.Second
}
