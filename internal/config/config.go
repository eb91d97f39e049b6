// Package config ingests the environment variables that configure each
// binary in the system. Every value has a default, so a node started with
// an empty environment comes up on localhost with sane replication
// parameters; malformed numeric values are reported as errors and should
// be fatal at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Leader holds the configuration of a leader node.
type Leader struct {
	Host               string
	Port               int
	Followers          []string
	WriteQuorum        int
	MinDelay           time.Duration
	MaxDelay           time.Duration
	ReplicationWorkers int
	ReplicationTimeout time.Duration
}

// Follower holds the configuration of a follower node.
type Follower struct {
	Host      string
	Port      int
	NodeID    string
	LeaderURL string
}

// FileServer holds the configuration of the file-server front door.
type FileServer struct {
	Host       string
	Port       int
	Mode       string
	RateLimit  int
	RateWindow time.Duration
	WorkDelay  time.Duration
}

// Addr formats host and port as a listen address.
func (c Leader) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Addr formats host and port as a listen address.
func (c Follower) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Addr formats host and port as a listen address.
func (c FileServer) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// LoadLeader reads the leader configuration from the environment.
//
// Recognized variables: FOLLOWERS (comma-separated base URLs),
// WRITE_QUORUM, MIN_DELAY and MAX_DELAY (seconds, fractional allowed),
// REPLICATION_WORKERS, REPLICATION_TIMEOUT (seconds), HOST, PORT.
func LoadLeader() (Leader, error) {
	cfg := Leader{
		Host:               envString("HOST", "0.0.0.0"),
		Followers:          splitURLs(os.Getenv("FOLLOWERS")),
		ReplicationWorkers: 10,
		ReplicationTimeout: 5 * time.Second,
	}

	var err error
	if cfg.Port, err = envInt("PORT", 8000); err != nil {
		return cfg, err
	}
	if cfg.WriteQuorum, err = envInt("WRITE_QUORUM", 0); err != nil {
		return cfg, err
	}
	if cfg.WriteQuorum < 0 {
		return cfg, fmt.Errorf("WRITE_QUORUM must be >= 0, got %d", cfg.WriteQuorum)
	}
	// More acks than followers can never be satisfied; cap instead of
	// wedging every write.
	if n := len(cfg.Followers); cfg.WriteQuorum > n {
		cfg.WriteQuorum = n
	}
	if cfg.MinDelay, err = envSeconds("MIN_DELAY", 0); err != nil {
		return cfg, err
	}
	if cfg.MaxDelay, err = envSeconds("MAX_DELAY", 0); err != nil {
		return cfg, err
	}
	if cfg.MaxDelay < cfg.MinDelay {
		return cfg, fmt.Errorf("MAX_DELAY (%s) must be >= MIN_DELAY (%s)", cfg.MaxDelay, cfg.MinDelay)
	}
	if cfg.ReplicationWorkers, err = envInt("REPLICATION_WORKERS", 10); err != nil {
		return cfg, err
	}
	if cfg.ReplicationWorkers <= 0 {
		return cfg, fmt.Errorf("REPLICATION_WORKERS must be > 0, got %d", cfg.ReplicationWorkers)
	}
	if cfg.ReplicationTimeout, err = envSeconds("REPLICATION_TIMEOUT", 5); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFollower reads the follower configuration from the environment.
//
// Recognized variables: NODE_ID, LEADER_URL, HOST, PORT.
func LoadFollower() (Follower, error) {
	cfg := Follower{
		Host:      envString("HOST", "0.0.0.0"),
		NodeID:    envString("NODE_ID", "follower1"),
		LeaderURL: envString("LEADER_URL", "http://localhost:8000"),
	}
	var err error
	if cfg.Port, err = envInt("PORT", 8001); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFileServer reads the file-server configuration from the environment.
//
// Recognized variables: SERVER_MODE (single, multi, race, threadsafe,
// ratelimit), RATE_LIMIT (requests), RATE_WINDOW (seconds), WORK_DELAY
// (seconds of simulated work per request), HOST, PORT.
func LoadFileServer() (FileServer, error) {
	cfg := FileServer{
		Host: envString("HOST", "0.0.0.0"),
		Mode: envString("SERVER_MODE", "ratelimit"),
	}
	var err error
	if cfg.Port, err = envInt("PORT", 8080); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = envInt("RATE_LIMIT", 5); err != nil {
		return cfg, err
	}
	if cfg.RateLimit <= 0 {
		return cfg, fmt.Errorf("RATE_LIMIT must be > 0, got %d", cfg.RateLimit)
	}
	if cfg.RateWindow, err = envSeconds("RATE_WINDOW", 1); err != nil {
		return cfg, err
	}
	if cfg.WorkDelay, err = envSeconds("WORK_DELAY", 0); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", name, v)
	}
	return n, nil
}

// envSeconds parses a float number of seconds into a Duration.
func envSeconds(name string, fallback float64) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return time.Duration(fallback * float64(time.Second)), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number of seconds %q", name, v)
	}
	if f < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", name, v)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// splitURLs splits a comma-separated URL list, trimming blanks.
func splitURLs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}
