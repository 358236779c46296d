package internal

import (
	"io"

	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/kv"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	backend   kv.Backend
	logOutput io.Writer
	events    dossierservice.EventFunc
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithBackend uses b instead of opening the backend named in the config.
func WithBackend(b kv.Backend) Option {
	return func(a *application) {
		a.backend = b
	}
}

// WithLogOutput redirects the JSON log stream. The MCP server needs stdout
// for the protocol and logs to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithEvents receives dossier lifecycle events from the service.
func WithEvents(fn dossierservice.EventFunc) Option {
	return func(a *application) {
		a.events = fn
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
