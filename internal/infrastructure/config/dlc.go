package config

// DlcConfig carries the tunable knobs of the Direct Load Control override
// engine: timing windows used by contiguity resolution and the rate/chunk
// limits enforced by the dispatcher against the head-end.
type DlcConfig struct {
	DefaultOverrideDurationMinutes int `mapstructure:"default_override_duration_minutes"`
	ContiguousStartBufferMinutes   int `mapstructure:"contiguous_start_buffer_minutes"`
	OppositeSwitchBackoffMinutes   int `mapstructure:"opposite_switch_backoff_minutes"`
	MaxDispatchCount               int `mapstructure:"max_dispatch_count"`
	RateLimitCalls                 int `mapstructure:"rate_limit_calls"`
	RateLimitPeriodSeconds         int `mapstructure:"rate_limit_period_seconds"`
	ProviderSessionLifetimeSeconds int `mapstructure:"provider_session_lifetime_seconds"`
	ProviderCallTimeoutSeconds     int `mapstructure:"provider_call_timeout_seconds"`
}
