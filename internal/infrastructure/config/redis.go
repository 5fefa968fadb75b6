package config

// RedisConfig configures the cache/coordination Redis connection backing the
// DLC event-sink idempotency ledger.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}
