package session

import "time"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithMaxSize sets the maximum number of open sessions.
// If maxSize <= 0 the registry is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(r *Registry) {
		r.maxSize = maxSize
	}
}

// WithTTL expires sessions older than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}
