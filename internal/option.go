package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// logOut receives log lines in addition to the optional log file.
	logOut io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects console logging, e.g. to stderr when stdout
// carries a protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
