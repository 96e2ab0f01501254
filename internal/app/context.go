// Package app holds the Ingest Gateway's explicit dependency container
// (spec §9, "singleton rework"): one struct built once in
// cmd/gateway/main.go and threaded into every handler, replacing the
// teacher's package-level auth.InitClerk()-style global init.
package app

import (
	"github.com/lore-anchor/protect/internal/auth"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/config"
	"github.com/lore-anchor/protect/internal/quota"
	"github.com/lore-anchor/protect/internal/queue"
	"github.com/lore-anchor/protect/internal/storage"
)

// Context bundles every collaborator the gateway's handlers need.
type Context struct {
	Config   *config.Gateway
	Repo     *catalog.Repository
	Queue    queue.Queue
	Store    storage.ObjectStore
	Quota    *quota.Checker
	Verifier *auth.Verifier
}

func New(cfg *config.Gateway, repo *catalog.Repository, q queue.Queue, store storage.ObjectStore, checker *quota.Checker, verifier *auth.Verifier) *Context {
	return &Context{
		Config:   cfg,
		Repo:     repo,
		Queue:    q,
		Store:    store,
		Quota:    checker,
		Verifier: verifier,
	}
}
