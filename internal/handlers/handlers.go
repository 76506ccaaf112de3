package handlers

import (
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/permalink"
	"github.com/trailsocial/engagement/internal/repository"
	"github.com/trailsocial/engagement/internal/viewer"
	"gorm.io/gorm"
)

// Handlers contains the HTTP handlers for the engagement API
type Handlers struct {
	db         *gorm.DB
	obfuscator *permalink.Obfuscator
	resolver   *viewer.Resolver
	recorder   *engagement.Recorder
	counters   *engagement.CounterCache
	claps      *engagement.ClapLedger
	content    repository.ContentRepository
}

// Deps are the collaborators a Handlers needs.
type Deps struct {
	DB         *gorm.DB
	Obfuscator *permalink.Obfuscator
	Resolver   *viewer.Resolver
	Recorder   *engagement.Recorder
	Counters   *engagement.CounterCache
	Claps      *engagement.ClapLedger
	Content    repository.ContentRepository
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) *Handlers {
	resolver := deps.Resolver
	if resolver == nil {
		resolver = viewer.NewResolver(false)
	}
	return &Handlers{
		db:         deps.DB,
		obfuscator: deps.Obfuscator,
		resolver:   resolver,
		recorder:   deps.Recorder,
		counters:   deps.Counters,
		claps:      deps.Claps,
		content:    deps.Content,
	}
}
