package config

// SessionManagerConfig holds the tunables of the session manager.
type SessionManagerConfig struct {
	// MaxBufferedMessages is the ceiling on outbound packets held while a
	// route lookup is in flight, one per destination address.
	// Default: 30
	MaxBufferedMessages int

	// MetricHalflifeMilliseconds is retained for interface compatibility;
	// current logic does not decay path metrics.
	// Default: 180000 (3 minutes)
	MetricHalflifeMilliseconds int
}

// DefaultSessionManagerConfig contains the session manager defaults.
var DefaultSessionManagerConfig = SessionManagerConfig{
	MaxBufferedMessages:        30,
	MetricHalflifeMilliseconds: 180000,
}
