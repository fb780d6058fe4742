// Package data is the read/write entry point UI collaborators use. Every
// write lands in the local mirror first; remote writes are best-effort and
// anything missed is reconciled by a later engine cycle.
package data

import (
	"log"
	"os"

	"github.com/champschool/champdesk/internal/gateway"
	"github.com/champschool/champdesk/internal/store"
	"github.com/go-playground/validator/v10"
)

// Config controls read routing and opportunistic remote writes.
type Config struct {
	// PreferOffline forces reads to answer from the mirror even while
	// online.
	PreferOffline bool

	// AutoSync enables the immediate single-record remote write after a
	// local write. When false, records wait for the next engine cycle.
	AutoSync bool
}

// DefaultConfig enables auto-sync with remote-first reads.
func DefaultConfig() Config {
	return Config{AutoSync: true}
}

// Service bundles the collaborators every entity repository shares.
type Service struct {
	store    *store.Store
	gw       gateway.Gateway
	online   func() bool
	config   Config
	validate *validator.Validate
	logger   *log.Logger
}

// NewService creates a Service. online reports current connectivity; it
// must be non-nil (the connectivity monitor's Online method in
// production).
func NewService(st *store.Store, gw gateway.Gateway, online func() bool, config Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[data] ", log.LstdFlags)
	}
	return &Service{
		store:    st,
		gw:       gw,
		online:   online,
		config:   config,
		validate: validator.New(),
		logger:   logger,
	}
}

// Store exposes the mirror for status and export tooling.
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) remoteWritable() bool {
	return s.config.AutoSync && s.online()
}

func (s *Service) remoteReadable() bool {
	return !s.config.PreferOffline && s.online()
}
