// cmd/fileserver runs the concurrent file-serving front door.
//
// The serve root is the single positional argument. Concurrency behavior
// is selected with SERVER_MODE (single, multi, race, threadsafe,
// ratelimit); the rate limiter defaults to 5 requests per second per
// client IP.
//
//	SERVER_MODE=ratelimit RATE_LIMIT=5 RATE_WINDOW=1 fileserver ./collection
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CristiBulat/PR-Repo/internal/api"
	"github.com/CristiBulat/PR-Repo/internal/config"
	"github.com/CristiBulat/PR-Repo/internal/counter"
	"github.com/CristiBulat/PR-Repo/internal/fileserver"
	"github.com/CristiBulat/PR-Repo/internal/metrics"
	"github.com/CristiBulat/PR-Repo/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

func main() {
	root := &cobra.Command{
		Use:   "fileserver <directory>",
		Short: "Concurrent HTTP file server with hit counting and rate limiting",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFileServer()
	if err != nil {
		return err
	}

	mode, err := counter.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow)
	srv, err := fileserver.New(args[0], counter.New(mode), limiter, cfg.WorkDelay)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery(), metrics.CountRequests("fileserver"))
	router.GET("/metrics", metrics.Handler())
	srv.Register(router)

	color.New(color.FgMagenta, color.Bold).Printf("fileserver on %s\n", cfg.Addr())
	log.Printf("[INIT] root=%s mode=%s rate_limit=%d/%s work_delay=%s",
		args[0], mode, cfg.RateLimit, cfg.RateWindow, cfg.WorkDelay)

	return router.Run(cfg.Addr())
}
