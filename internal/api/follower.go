package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CristiBulat/PR-Repo/internal/config"
	"github.com/CristiBulat/PR-Repo/internal/metrics"
	"github.com/CristiBulat/PR-Repo/internal/store"
)

// followerStats counts what a follower has served and refused.
type followerStats struct {
	mu                   sync.Mutex
	readsServed          int64
	writesRejected       int64
	replicationsReceived int64
}

func (s *followerStats) bump(field *int64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// FollowerHandler serves the follower role: local reads, replicated writes
// from the leader, and a hard refusal of direct client writes.
//
// Apart from the debug-only /compare endpoint, a follower makes no
// outbound calls and knows nothing about other followers.
type FollowerHandler struct {
	store  *store.Store
	cfg    config.Follower
	stats  followerStats
	client *http.Client // used only by /compare
}

// NewFollowerHandler creates a FollowerHandler.
func NewFollowerHandler(s *store.Store, cfg config.Follower) *FollowerHandler {
	return &FollowerHandler{
		store:  s,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Register mounts all follower routes on r.
func (h *FollowerHandler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/get/:key", h.Get)
	r.POST("/set", h.Set)
	r.POST("/replicate", h.Replicate)

	// Introspection and administration.
	r.GET("/all", h.All)
	r.GET("/keys", h.Keys)
	r.GET("/stats", h.Stats)
	r.GET("/compare", h.Compare)
	r.POST("/clear", h.Clear)
	r.GET("/metrics", metrics.Handler())
}

// Health handles GET /health.
func (h *FollowerHandler) Health(c *gin.Context) {
	size, version := h.store.Summary()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"role":       "follower",
		"node_id":    h.cfg.NodeID,
		"leader_url": h.cfg.LeaderURL,
		"store_size": size,
		"version":    version,
	})
}

// Get handles GET /get/:key. Follower reads are eventually consistent:
// they may lag the leader until the replication task for a key lands.
func (h *FollowerHandler) Get(c *gin.Context) {
	key := c.Param("key")

	value, version, ok := h.store.GetWithVersion(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found", "key": key})
		return
	}
	h.stats.bump(&h.stats.readsServed)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value, "version": version, "node": h.cfg.NodeID})
}

// Set handles POST /set by refusing it: all writes go through the leader.
// State is never mutated here.
func (h *FollowerHandler) Set(c *gin.Context) {
	h.stats.bump(&h.stats.writesRejected)
	c.JSON(http.StatusForbidden, gin.H{
		"error":      "Writes not allowed on follower",
		"leader_url": h.cfg.LeaderURL,
		"node":       h.cfg.NodeID,
	})
}

// Replicate handles POST /replicate with body {"key", "value", "version"}.
//
// The write is applied through the store's per-key versioning; an older
// version than the one already held is absorbed silently: success is
// reported either way, because a skipped stale write is the convergence
// mechanism, not a failure. The reported version is the per-key version
// in effect after the call.
func (h *FollowerHandler) Replicate(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	rawKey, hasKey := body["key"]
	value, hasValue := body["value"]
	rawVersion, hasVersion := body["version"]
	key, keyIsString := rawKey.(string)
	version, versionIsNumber := rawVersion.(float64)
	if !hasKey || !hasValue || !hasVersion || !keyIsString || key == "" || !versionIsNumber {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain \"key\", \"value\" and a numeric \"version\""})
		return
	}

	if _, err := h.store.ApplyWrite(key, value, int64(version)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.stats.bump(&h.stats.replicationsReceived)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"key":     key,
		"version": h.store.KeyVersion(key),
		"node":    h.cfg.NodeID,
	})
}

// All handles GET /all.
func (h *FollowerHandler) All(c *gin.Context) {
	data := h.store.GetAll()
	c.JSON(http.StatusOK, gin.H{"data": data, "size": len(data), "version": h.store.Version(), "node": h.cfg.NodeID})
}

// Keys handles GET /keys.
func (h *FollowerHandler) Keys(c *gin.Context) {
	keys := h.store.Keys()
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys), "node": h.cfg.NodeID})
}

// Stats handles GET /stats.
func (h *FollowerHandler) Stats(c *gin.Context) {
	size, version := h.store.Summary()
	h.stats.mu.Lock()
	reads, rejected, received := h.stats.readsServed, h.stats.writesRejected, h.stats.replicationsReceived
	h.stats.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"role":                  "follower",
		"node_id":               h.cfg.NodeID,
		"store_size":            size,
		"version":               version,
		"reads_served":          reads,
		"writes_rejected":       rejected,
		"replications_received": received,
	})
}

// Compare handles GET /compare: fetch the leader's snapshot and diff it
// against the local one. Debug only: this is the single place a
// follower ever makes an outbound call.
func (h *FollowerHandler) Compare(c *gin.Context) {
	leaderData, err := h.fetchLeaderAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "cannot reach leader: " + err.Error()})
		return
	}

	local := h.store.GetAll()
	missing := []string{}
	differing := []string{}
	extra := []string{}

	for k, lv := range leaderData {
		ov, ok := local[k]
		switch {
		case !ok:
			missing = append(missing, k)
		case !reflect.DeepEqual(lv, ov):
			differing = append(differing, k)
		}
	}
	for k := range local {
		if _, ok := leaderData[k]; !ok {
			extra = append(extra, k)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"node":        h.cfg.NodeID,
		"in_sync":     len(missing) == 0 && len(differing) == 0 && len(extra) == 0,
		"leader_size": len(leaderData),
		"local_size":  len(local),
		"missing":     missing,
		"differing":   differing,
		"extra":       extra,
	})
}

// Clear handles POST /clear: destructive reset, for tests.
func (h *FollowerHandler) Clear(c *gin.Context) {
	h.store.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "node": h.cfg.NodeID})
}

// fetchLeaderAll GETs the leader's /all snapshot.
func (h *FollowerHandler) fetchLeaderAll(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.LeaderURL+"/all", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}
