// Package api wires up the Gin HTTP routers for the leader and follower
// node roles.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CristiBulat/PR-Repo/internal/cluster"
	"github.com/CristiBulat/PR-Repo/internal/config"
	"github.com/CristiBulat/PR-Repo/internal/metrics"
	"github.com/CristiBulat/PR-Repo/internal/store"
)

// LeaderHandler serves the leader role: sole acceptor of writes, local
// reads, and administration.
type LeaderHandler struct {
	store      *store.Store
	replicator *cluster.Replicator
	stats      *cluster.Stats
	cfg        config.Leader
}

// NewLeaderHandler creates a LeaderHandler.
func NewLeaderHandler(s *store.Store, r *cluster.Replicator, st *cluster.Stats, cfg config.Leader) *LeaderHandler {
	return &LeaderHandler{store: s, replicator: r, stats: st, cfg: cfg}
}

// Register mounts all leader routes on r.
func (h *LeaderHandler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/get/:key", h.Get)
	r.POST("/set", h.Set)
	r.DELETE("/delete/:key", h.Delete)

	// Introspection and administration.
	r.GET("/all", h.All)
	r.GET("/keys", h.Keys)
	r.GET("/stats", h.Stats)
	r.GET("/log", h.WriteLog)
	r.POST("/clear", h.Clear)
	r.GET("/metrics", metrics.Handler())
}

// Health handles GET /health.
func (h *LeaderHandler) Health(c *gin.Context) {
	size, version := h.store.Summary()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"role":         "leader",
		"followers":    len(h.cfg.Followers),
		"write_quorum": h.cfg.WriteQuorum,
		"min_delay":    h.cfg.MinDelay.Seconds(),
		"max_delay":    h.cfg.MaxDelay.Seconds(),
		"store_size":   size,
		"version":      version,
	})
}

// Get handles GET /get/:key: a local read. Leader reads always observe
// the leader's own latest writes.
func (h *LeaderHandler) Get(c *gin.Context) {
	key := c.Param("key")

	value, version, ok := h.store.GetWithVersion(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found", "key": key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value, "version": version})
}

// Set handles POST /set with body {"key": ..., "value": ...}.
//
// The write is applied locally first, then fanned out to the followers.
// The response arrives as soon as the quorum is met; when it is not, the
// status is 500 but the local write is retained: recovery is the next
// successful write to the same key.
func (h *LeaderHandler) Set(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	rawKey, hasKey := body["key"]
	value, hasValue := body["value"]
	key, isString := rawKey.(string)
	if !hasKey || !hasValue || !isString || key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain a non-empty string \"key\" and a \"value\""})
		return
	}

	version, err := h.store.Set(key, value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	repl := h.replicator.Replicate(key, value, version)
	h.stats.RecordWrite(repl.Success)

	status := http.StatusOK
	if !repl.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"success":     repl.Success,
		"key":         key,
		"value":       value,
		"version":     version,
		"replication": repl,
	})
}

// Delete handles DELETE /delete/:key. Deletes are leader-only and never
// replicated; followers keep the key until a later write supersedes it.
func (h *LeaderHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	existed := h.store.Delete(key)
	c.JSON(http.StatusOK, gin.H{"success": existed, "key": key})
}

// All handles GET /all.
func (h *LeaderHandler) All(c *gin.Context) {
	data := h.store.GetAll()
	c.JSON(http.StatusOK, gin.H{"data": data, "size": len(data), "version": h.store.Version()})
}

// Keys handles GET /keys.
func (h *LeaderHandler) Keys(c *gin.Context) {
	keys := h.store.Keys()
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

// Stats handles GET /stats.
func (h *LeaderHandler) Stats(c *gin.Context) {
	size, version := h.store.Summary()
	snap := h.stats.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"role":                  "leader",
		"store_size":            size,
		"version":               version,
		"followers":             h.cfg.Followers,
		"write_quorum":          h.cfg.WriteQuorum,
		"writes_total":          snap.WritesTotal,
		"writes_successful":     snap.WritesSuccessful,
		"writes_failed":         snap.WritesFailed,
		"replication_successes": snap.ReplicationSuccesses,
		"replication_failures":  snap.ReplicationFailures,
	})
}

// WriteLog handles GET /log: the in-memory write log, newest last.
func (h *LeaderHandler) WriteLog(c *gin.Context) {
	log := h.store.WriteLog()
	c.JSON(http.StatusOK, gin.H{"log": log, "count": len(log)})
}

// Clear handles POST /clear: destructive reset, for tests.
func (h *LeaderHandler) Clear(c *gin.Context) {
	h.store.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
