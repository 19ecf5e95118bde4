package repository

import "github.com/okian/listeval/pkg/logger"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithFormat sets the format new result files are written in.
func WithFormat(f Format) Option {
	return func(s *FileStore) {
		if f != "" {
			s.format = f
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency bounds how many files LoadAll decodes at once.
func WithConcurrency(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.concurrency = n
		}
	}
}
