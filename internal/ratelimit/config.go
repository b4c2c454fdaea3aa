package ratelimit

// Config is the rate-limit configuration for one status API server: a
// global bucket every request draws from, plus optional tighter buckets
// for specific routes.
type Config struct {
	Enabled bool         `mapstructure:"enabled"`
	Global  LimitConfig  `mapstructure:"global"`
	Routes  []RouteLimit `mapstructure:"routes"`
}

// LimitConfig is a token bucket's two parameters: steady-state throughput
// and burst size.
type LimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// RouteLimit overrides the global limit for one route, keyed by the gin
// route pattern (e.g. "/api/v1/relations/:name", not the literal request
// path).
type RouteLimit struct {
	Name              string  `mapstructure:"name"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// DefaultConfig returns sane limits for the status API's own route set:
// /score is polled on a tight loop by dashboards so gets the most headroom,
// /tables walks every IRM table so is throttled harder than the rest.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Global: LimitConfig{
			RequestsPerSecond: 100,
			BurstSize:         200,
		},
		Routes: []RouteLimit{
			{
				Name:              "/api/v1/score",
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
			{
				Name:              "/api/v1/relations/:name",
				RequestsPerSecond: 20,
				BurstSize:         40,
			},
			{
				Name:              "/api/v1/tables",
				RequestsPerSecond: 5,
				BurstSize:         10,
			},
		},
	}
}

// GetRouteLimit returns the override configured for route, or nil if the
// route draws only from the global bucket.
func (c *Config) GetRouteLimit(route string) *RouteLimit {
	for _, r := range c.Routes {
		if r.Name == route {
			return &r
		}
	}
	return nil
}
