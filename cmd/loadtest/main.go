// cmd/loadtest drives a running leader with concurrent writes and reports
// latency, throughput and quorum failures. With --followers it finishes
// by checking that every follower converged to the leader's snapshot.
//
//	loadtest --server http://localhost:8000 --writers 10 --requests 10000 \
//	         --keys 100 --followers http://localhost:8001,http://localhost:8002
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/CristiBulat/PR-Repo/internal/client"
)

var (
	serverAddr string
	followers  string
	writers    int
	requests   int
	keySpace   int
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "loadtest",
		Short: "Concurrent write benchmark for the KV store leader",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
	root.Flags().StringVarP(&serverAddr, "server", "s", "http://localhost:8000", "leader address")
	root.Flags().StringVar(&followers, "followers", "", "comma-separated follower addresses for the convergence check")
	root.Flags().IntVar(&writers, "writers", 10, "concurrent writer goroutines")
	root.Flags().IntVar(&requests, "requests", 1000, "total writes to issue")
	root.Flags().IntVar(&keySpace, "keys", 100, "number of distinct keys to write")
	root.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	c := client.New(serverAddr, timeout)
	ctx := context.Background()

	if _, err := c.Health(ctx); err != nil {
		return fmt.Errorf("leader not reachable: %w", err)
	}

	bar := progressbar.Default(int64(requests), "writing")

	jobs := make(chan int, writers)
	latencies := make([]time.Duration, requests)
	var failures int64
	var mu sync.Mutex

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				key := fmt.Sprintf("key-%d", i%keySpace)
				value := fmt.Sprintf("value-%d-%d", i, rand.Int63())

				t0 := time.Now()
				_, err := c.Set(ctx, key, value)
				elapsed := time.Since(t0)

				mu.Lock()
				latencies[i] = elapsed
				if err != nil {
					failures++
				}
				mu.Unlock()
				_ = bar.Add(1)
			}
		}()
	}
	for i := 0; i < requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	total := time.Since(start)

	report(latencies, failures, total)

	if followers != "" {
		return checkConvergence(ctx, c, strings.Split(followers, ","))
	}
	return nil
}

// report prints throughput and the latency distribution.
func report(latencies []time.Duration, failures int64, total time.Duration) {
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	mean := sum / time.Duration(len(sorted))
	p50 := sorted[len(sorted)/2]
	p95 := sorted[len(sorted)*95/100]

	fmt.Println()
	color.New(color.Bold).Println("Results")
	fmt.Printf("  writes:      %d (%d quorum failures)\n", len(latencies), failures)
	fmt.Printf("  wall clock:  %s\n", total.Round(time.Millisecond))
	fmt.Printf("  throughput:  %.1f writes/s\n", float64(len(latencies))/total.Seconds())
	fmt.Printf("  latency:     mean=%s p50=%s p95=%s max=%s\n",
		mean.Round(time.Microsecond), p50.Round(time.Microsecond),
		p95.Round(time.Microsecond), sorted[len(sorted)-1].Round(time.Microsecond))
}

// checkConvergence lets in-flight replications settle, then diffs each
// follower's snapshot against the leader's.
func checkConvergence(ctx context.Context, leader *client.Client, followerURLs []string) error {
	fmt.Println()
	color.New(color.Bold).Println("Convergence check")
	time.Sleep(2 * time.Second)

	leaderData, err := leader.All(ctx)
	if err != nil {
		return fmt.Errorf("fetch leader snapshot: %w", err)
	}

	ok := true
	for _, url := range followerURLs {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		f := client.New(url, 10*time.Second)
		data, err := f.All(ctx)
		if err != nil {
			color.New(color.FgRed).Printf("  %s: unreachable (%v)\n", url, err)
			ok = false
			continue
		}

		diverged := 0
		for k, v := range leaderData {
			if fv, found := data[k]; !found || !reflect.DeepEqual(v, fv) {
				diverged++
			}
		}
		if diverged == 0 {
			color.New(color.FgGreen).Printf("  %s: in sync (%d keys)\n", url, len(data))
		} else {
			color.New(color.FgYellow).Printf("  %s: %d keys diverged\n", url, diverged)
			ok = false
		}
	}
	if !ok {
		return fmt.Errorf("cluster not converged")
	}
	return nil
}
