// cmd/kvnode runs one node of the replicated key-value store, as either
// the leader or a follower.
//
// Configuration comes from the environment so the same binary serves any
// role in a compose file:
//
//	FOLLOWERS=http://f1:8001,http://f2:8002 WRITE_QUORUM=1 kvnode leader
//	NODE_ID=follower1 LEADER_URL=http://leader:8000 PORT=8001 kvnode follower
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/CristiBulat/PR-Repo/internal/api"
	"github.com/CristiBulat/PR-Repo/internal/cluster"
	"github.com/CristiBulat/PR-Repo/internal/config"
	"github.com/CristiBulat/PR-Repo/internal/metrics"
	"github.com/CristiBulat/PR-Repo/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "kvnode",
		Short: "A node of the replicated key-value store",
	}
	root.AddCommand(leaderCmd(), followerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── leader ───────────────────────────────────────────────────────────────────

func leaderCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "leader",
		Short: "Run the leader node (sole acceptor of writes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLeader()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			s := store.New()
			stats := &cluster.Stats{}
			repl := cluster.NewReplicator(cluster.Config{
				Followers: cfg.Followers,
				Quorum:    cfg.WriteQuorum,
				MinDelay:  cfg.MinDelay,
				MaxDelay:  cfg.MaxDelay,
				Workers:   cfg.ReplicationWorkers,
				Timeout:   cfg.ReplicationTimeout,
			}, stats)

			router := newRouter("leader")
			api.NewLeaderHandler(s, repl, stats, cfg).Register(router)

			color.New(color.FgCyan, color.Bold).Printf("kvstore leader on %s\n", cfg.Addr())
			log.Printf("[INIT] followers=%d quorum=%d delay=[%s, %s] workers=%d timeout=%s",
				len(cfg.Followers), cfg.WriteQuorum, cfg.MinDelay, cfg.MaxDelay,
				cfg.ReplicationWorkers, cfg.ReplicationTimeout)

			// The replication pool is drained only after the server has
			// stopped accepting writes, so every queued task completes.
			return runServer(router, cfg.Addr(), repl.Close)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8000, "listen port (overrides PORT)")
	return cmd
}

// ─── follower ─────────────────────────────────────────────────────────────────

func followerCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "follower",
		Short: "Run a follower node (reads and replicated writes only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFollower()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			router := newRouter("follower")
			api.NewFollowerHandler(store.New(), cfg).Register(router)

			color.New(color.FgGreen, color.Bold).Printf("kvstore follower %s on %s\n", cfg.NodeID, cfg.Addr())
			log.Printf("[INIT] node_id=%s leader=%s", cfg.NodeID, cfg.LeaderURL)

			return runServer(router, cfg.Addr(), nil)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8001, "listen port (overrides PORT)")
	return cmd
}

// ─── shared wiring ────────────────────────────────────────────────────────────

func newRouter(role string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery(), metrics.CountRequests(role))
	return router
}

// runServer serves router on addr until SIGINT/SIGTERM, then shuts down
// gracefully. drain, when non-nil, runs after the listener has stopped
// accepting requests and before the process exits.
func runServer(router *gin.Engine, addr string, drain func()) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		log.Printf("[SHUTDOWN] received %s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[SHUTDOWN] server shutdown error: %v", err)
	}
	if drain != nil {
		log.Printf("[SHUTDOWN] draining replication pool")
		drain()
	}
	log.Printf("[SHUTDOWN] complete")
	return nil
}
