package sequent

import "time"

// Config holds configuration for the Dispatcher.
type Config struct {
	// ShutdownTimeout is the maximum time Stop waits for the executor to
	// drain in-flight and queued events.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: 30 * time.Second,
	}
}
