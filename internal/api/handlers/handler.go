// Package handlers implements the HTTP surface of the worker: usage
// accounting, resource CRUD over the key-value store, the outbound
// proxy and the cron hook.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Regdarim/arni-worker/internal/config"
	"github.com/Regdarim/arni-worker/internal/kv"
	"github.com/Regdarim/arni-worker/internal/maintenance"
	"github.com/Regdarim/arni-worker/internal/proxy"
	"github.com/Regdarim/arni-worker/internal/quota"
	"github.com/Regdarim/arni-worker/internal/usage"
)

// Key namespaces for the plain CRUD resources.
const (
	webhookPrefix = "webhook:"
	taskPrefix    = "task:"
	notePrefix    = "note:"
	memoryPrefix  = "memory:"
)

// Handler carries the collaborators every route needs. All state lives
// in the store; the handler itself is stateless and safe for concurrent
// use.
type Handler struct {
	store   kv.Store
	tracker *usage.Tracker
	quota   *quota.Service
	proxy   *proxy.Client
	maint   *maintenance.Runner
	live    *config.Live
	version string
}

// New wires a Handler. store may be nil, in which case every endpoint
// that needs the collaborator responds 500 "KV not bound".
func New(store kv.Store, tracker *usage.Tracker, quotaSvc *quota.Service, proxyClient *proxy.Client, maint *maintenance.Runner, live *config.Live, version string) *Handler {
	return &Handler{
		store:   store,
		tracker: tracker,
		quota:   quotaSvc,
		proxy:   proxyClient,
		maint:   maint,
		live:    live,
		version: version,
	}
}

// requireStore responds 500 "KV not bound" when no collaborator is
// attached, and reports whether the caller may proceed.
func (h *Handler) requireStore(c *gin.Context) bool {
	if h.store == nil {
		respondError(c, http.StatusInternalServerError, "KV not bound")
		return false
	}
	return true
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, message)
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

func respondStoreError(c *gin.Context, err error) {
	respondError(c, http.StatusInternalServerError, "KV error: "+err.Error())
}
