// cmd/kvcli is the CLI client for the replicated key-value store, built
// with Cobra.
//
// Usage:
//
//	kvcli put mykey '"hello world"'   --server http://localhost:8000
//	kvcli get mykey                   --server http://localhost:8000
//	kvcli delete mykey                --server http://localhost:8000
//	kvcli stats                       --server http://localhost:8001
//
// Values are JSON: put parses its value argument as JSON and falls back
// to a plain string when it doesn't parse.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CristiBulat/PR-Repo/internal/client"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for the replicated KV store",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8000", "node address (writes must target the leader)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(putCmd(), getCmd(), deleteCmd(), allCmd(), healthCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── put ──────────────────────────────────────────────────────────────────────

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a key-value pair (leader only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1] // plain string
			}

			c := client.New(serverAddr, timeout)
			resp, err := c.Set(context.Background(), args[0], value)
			if errors.Is(err, client.ErrForbidden) {
				return fmt.Errorf("this node is a follower; point --server at the leader")
			}
			if err != nil && resp == nil {
				return err
			}
			if err != nil {
				color.New(color.FgYellow).Printf("write failed quorum: %v\n", err)
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── get ──────────────────────────────────────────────────────────────────────

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Get(context.Background(), args[0])
			if errors.Is(err, client.ErrNotFound) {
				color.New(color.FgYellow).Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── delete ───────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key (leader-local, never replicated)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Delete(context.Background(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── introspection ────────────────────────────────────────────────────────────

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Dump the node's full key-value snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			data, err := c.All(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(data)
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the node's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			body, err := c.Health(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(body)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the node's write/replication statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			body, err := c.Stats(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(body)
			return nil
		},
	}
}

// prettyPrint renders any response as indented JSON.
func prettyPrint(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(out))
}
