// Package listener defines the per-exchange collaborator protocol: fetch the
// initial market list, and stream parsed actions for as long as the
// orchestrator keeps it alive.
package listener

import (
	"context"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/models"
)

// Sink receives the actions a listener produces, tagged with the listener
// that produced them.
type Sink func(l ExchangeListener, batch []actions.Action)

// Config is the venue-specific configuration a listener is constructed with,
// sourced from the <VENUE>_* environment variables.
type Config struct {
	Exchange   models.Exchange
	WSURL      string
	APIBaseURL string
	APIKey     string
	Markets    []string // "BASE_QUOTE" pair strings
}

// ExchangeListener is the capability set every venue registers.
type ExchangeListener interface {
	// Name identifies the listener for logging and the --exchange flag.
	Name() string
	// GetMarkets performs a one-shot market list fetch, emitting actions to
	// the configured sink and returning.
	GetMarkets(ctx context.Context) error
	// Listen connects, subscribes, and streams actions to the configured
	// sink until ctx is cancelled or the orchestrator calls Close.
	Listen(ctx context.Context) error
	// Close requests a graceful shutdown; safe to call multiple times.
	Close()
}

// Constructor builds a listener for a venue given its config and the sink to
// emit actions through.
type Constructor func(cfg Config, sink Sink) ExchangeListener

// registry is the explicit {venue -> constructor} map populated at process
// start — no runtime reflection.
var registry = map[string]Constructor{}

// Register adds a venue constructor to the registry. Called from each
// venue package's init().
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Registered returns the names of every registered venue.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// New constructs the listener registered for name, or (nil, false) if no
// venue by that name has been registered.
func New(name string, cfg Config, sink Sink) (ExchangeListener, bool) {
	ctor, ok := registry[name]
	if !ok {
		return nil, false
	}
	return ctor(cfg, sink), true
}
