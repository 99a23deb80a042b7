package internal

import "io"

// Run modes.
const (
	ModeServe = "serve"
	ModeTUI   = "tui"
	ModeMCP   = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mode    string
	version string
	stdin   io.Reader
	stdout  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode selects the outer surface: ModeServe, ModeTUI or ModeMCP.
func WithMode(mode string) Option {
	return func(a *application) {
		a.mode = mode
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithStdio overrides the streams used by the MCP transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.stdin = in
		a.stdout = out
	}
}
