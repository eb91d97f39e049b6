package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLeaderDefaults(t *testing.T) {
	cfg, err := LoadLeader()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.Empty(t, cfg.Followers)
	assert.Equal(t, 0, cfg.WriteQuorum)
	assert.Equal(t, time.Duration(0), cfg.MinDelay)
	assert.Equal(t, 10, cfg.ReplicationWorkers)
	assert.Equal(t, 5*time.Second, cfg.ReplicationTimeout)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
}

func TestLoadLeaderFromEnvironment(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("FOLLOWERS", "http://f1:8001, http://f2:8002/ ,")
	t.Setenv("WRITE_QUORUM", "2")
	t.Setenv("MIN_DELAY", "0.5")
	t.Setenv("MAX_DELAY", "1.5")
	t.Setenv("REPLICATION_WORKERS", "4")
	t.Setenv("REPLICATION_TIMEOUT", "2")

	cfg, err := LoadLeader()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://f1:8001", "http://f2:8002"}, cfg.Followers,
		"entries are trimmed and trailing slashes dropped")
	assert.Equal(t, 2, cfg.WriteQuorum)
	assert.Equal(t, 500*time.Millisecond, cfg.MinDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.MaxDelay)
	assert.Equal(t, 4, cfg.ReplicationWorkers)
	assert.Equal(t, 2*time.Second, cfg.ReplicationTimeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}

func TestLoadLeaderQuorumCappedAtFollowerCount(t *testing.T) {
	t.Setenv("FOLLOWERS", "http://f1:8001")
	t.Setenv("WRITE_QUORUM", "5")

	cfg, err := LoadLeader()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.WriteQuorum)
}

func TestLoadLeaderRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"bad port":        {"PORT", "eighty"},
		"bad quorum":      {"WRITE_QUORUM", "two"},
		"negative quorum": {"WRITE_QUORUM", "-1"},
		"bad delay":       {"MIN_DELAY", "fast"},
		"negative delay":  {"MAX_DELAY", "-2"},
		"zero workers":    {"REPLICATION_WORKERS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadLeader()
			assert.Error(t, err)
		})
	}
}

func TestLoadLeaderRejectsInvertedDelayBounds(t *testing.T) {
	t.Setenv("MIN_DELAY", "2")
	t.Setenv("MAX_DELAY", "1")
	_, err := LoadLeader()
	assert.Error(t, err)
}

func TestLoadFollower(t *testing.T) {
	cfg, err := LoadFollower()
	require.NoError(t, err)
	assert.Equal(t, "follower1", cfg.NodeID)
	assert.Equal(t, "http://localhost:8000", cfg.LeaderURL)
	assert.Equal(t, 8001, cfg.Port)

	t.Setenv("NODE_ID", "f9")
	t.Setenv("LEADER_URL", "http://leader:8000")
	t.Setenv("PORT", "8009")

	cfg, err = LoadFollower()
	require.NoError(t, err)
	assert.Equal(t, "f9", cfg.NodeID)
	assert.Equal(t, "http://leader:8000", cfg.LeaderURL)
	assert.Equal(t, "0.0.0.0:8009", cfg.Addr())
}

func TestLoadFileServer(t *testing.T) {
	cfg, err := LoadFileServer()
	require.NoError(t, err)
	assert.Equal(t, "ratelimit", cfg.Mode)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, time.Second, cfg.RateWindow)
	assert.Equal(t, time.Duration(0), cfg.WorkDelay)

	t.Setenv("SERVER_MODE", "race")
	t.Setenv("RATE_LIMIT", "10")
	t.Setenv("RATE_WINDOW", "0.5")
	t.Setenv("WORK_DELAY", "1")

	cfg, err = LoadFileServer()
	require.NoError(t, err)
	assert.Equal(t, "race", cfg.Mode)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.RateWindow)
	assert.Equal(t, time.Second, cfg.WorkDelay)

	t.Setenv("RATE_LIMIT", "0")
	_, err = LoadFileServer()
	assert.Error(t, err)
}
