// Package cluster implements the leader side of the replication protocol:
// semi-synchronous fan-out of accepted writes to a static set of follower
// nodes.
//
// Interview explanation: semi-synchronous replication:
//
//	The leader applies a write locally, then ships it to all N followers
//	in parallel. The client gets its answer as soon as Q followers have
//	acknowledged; the remaining N-Q replications keep running in the
//	background. Q=0 is fire-and-forget, Q=N is the strongest durability
//	this design offers (wait for the slowest follower).
//
//	A write that misses a follower is never retried. The follower stays
//	divergent for that key until a later write to the same key supersedes
//	it: per-key versions guarantee the later write wins no matter the
//	arrival order.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/CristiBulat/PR-Repo/internal/metrics"
)

// Config holds the replication parameters of a leader node.
type Config struct {
	Followers []string      // follower base URLs, e.g. http://follower1:8081
	Quorum    int           // follower acks required before a write succeeds
	MinDelay  time.Duration // lower bound of the simulated per-attempt latency
	MaxDelay  time.Duration // upper bound of the simulated per-attempt latency
	Workers   int           // size of the replication worker pool
	Timeout   time.Duration // per-follower request timeout
}

// Detail is the outcome of one replication attempt to one follower.
type Detail struct {
	Success  bool    `json:"success"`
	Follower string  `json:"follower"`
	Delay    float64 `json:"delay,omitempty"` // simulated latency in seconds
	Error    string  `json:"error,omitempty"`
}

// Result is what a client write learns about its replication.
type Result struct {
	Success        bool     `json:"success"`
	Confirmations  int      `json:"confirmations"`
	QuorumRequired int      `json:"quorum_required"`
	Details        []Detail `json:"details"`
}

// task is one queued replication attempt. results is buffered for the
// whole fan-out, so a worker's send never blocks even after the write
// has already returned to the client.
type task struct {
	follower string
	key      string
	value    any
	version  int64
	results  chan<- Detail
}

// Replicator fans accepted writes out to every follower through a fixed
// pool of worker goroutines.
//
// The pool is created once at startup and outlives every request: a write
// that returns early at quorum leaves its remaining tasks running, and
// their outcomes still land in the shared Stats.
type Replicator struct {
	cfg    Config
	client *http.Client
	stats  *Stats

	tasks chan task
	wg    sync.WaitGroup
}

// replicateRequest is the wire format shipped to a follower's /replicate.
type replicateRequest struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Version int64  `json:"version"`
}

// NewReplicator creates a Replicator and starts its worker pool.
func NewReplicator(cfg Config, stats *Stats) *Replicator {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	r := &Replicator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		stats:  stats,
		// Buffered so that submitting a fan-out does not block the
		// request handler on a busy pool until 1024 tasks are queued.
		tasks: make(chan task, 1024),
	}
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Replicate ships one accepted write to every follower and blocks only
// until the outcome is known.
//
// It returns as soon as the confirmation count reaches the quorum; tasks
// still in flight at that point are not cancelled and complete in the
// background. With no followers configured, or a quorum of zero, it
// returns success immediately (the fan-out still happens for eventual
// convergence).
func (r *Replicator) Replicate(key string, value any, version int64) Result {
	n := len(r.cfg.Followers)
	res := Result{QuorumRequired: r.cfg.Quorum, Details: []Detail{}}

	if n == 0 {
		res.Success = true
		return res
	}

	results := make(chan Detail, n)
	for _, f := range r.cfg.Followers {
		r.tasks <- task{
			follower: f,
			key:      key,
			value:    value,
			version:  version,
			results:  results,
		}
	}

	if r.cfg.Quorum == 0 {
		// Fire-and-forget: the workers keep replicating, nobody waits.
		res.Success = true
		return res
	}

	completed := 0
	for completed < n {
		d := <-results
		completed++
		res.Details = append(res.Details, d)
		if d.Success {
			res.Confirmations++
			if res.Confirmations >= r.cfg.Quorum {
				res.Success = true
				return res
			}
		}
	}

	// Every task finished and the quorum was not reached.
	return res
}

// Close drains the worker pool: all queued and in-flight tasks run to
// completion, then the workers exit. Call only after the HTTP server has
// stopped accepting writes.
func (r *Replicator) Close() {
	close(r.tasks)
	r.wg.Wait()
}

// worker consumes tasks until the pool is drained.
func (r *Replicator) worker() {
	defer r.wg.Done()
	for t := range r.tasks {
		t.results <- r.attempt(t)
	}
}

// attempt performs one replication attempt: sleep the simulated latency,
// then POST to the follower. Failures are recorded, never retried.
func (r *Replicator) attempt(t task) Detail {
	// The latency model sits BEFORE the request: the sleep is part of the
	// simulated network path, so quorum timing tracks the delay bounds.
	delay := r.cfg.MinDelay
	if r.cfg.MaxDelay > r.cfg.MinDelay {
		delay += time.Duration(rand.Int63n(int64(r.cfg.MaxDelay - r.cfg.MinDelay)))
	}
	time.Sleep(delay)

	d := Detail{Follower: t.follower, Delay: delay.Seconds()}
	if err := r.send(t); err != nil {
		d.Error = err.Error()
		r.stats.RecordReplication(false)
		metrics.ReplicationAttempts.WithLabelValues("failure").Inc()
		return d
	}

	d.Success = true
	r.stats.RecordReplication(true)
	metrics.ReplicationAttempts.WithLabelValues("success").Inc()
	return d
}

// send POSTs the replicate request to the follower with the configured
// timeout. Any non-200 response counts as a failure.
func (r *Replicator) send(t task) error {
	body, err := json.Marshal(replicateRequest{Key: t.key, Value: t.value, Version: t.version})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.follower+"/replicate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("follower returned HTTP %d", resp.StatusCode)
	}
	return nil
}
