// Package cmd is the codegraf binary's CLI surface (§6's "CLI surface"):
// a single process that serves either the MCP or the LSP wire transport
// over stdio against one workspace's persisted store, following the
// teacher's cobra root-command + persistent-flag layout (cmd/mount.go)
// adapted from a FUSE-mount invocation to a stdio server invocation.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/codegraf/internal/config"
	"github.com/agentic-research/codegraf/internal/coordinator"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/resolve"
	"github.com/agentic-research/codegraf/internal/transport/lsp"
	"github.com/agentic-research/codegraf/internal/transport/mcp"
	"github.com/agentic-research/codegraf/internal/workspace"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	stdioMode     bool
	mcpMode       bool
	workspaceRoot string
	storeDir      string
	configPath    string
)

func init() {
	rootCmd.Flags().BoolVar(&stdioMode, "stdio", false, "Serve the LSP workspace/executeCommand transport over stdio")
	rootCmd.Flags().BoolVar(&mcpMode, "mcp", false, "Serve the MCP tools/call transport over stdio")
	rootCmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root to index (default: current directory)")
	rootCmd.Flags().StringVar(&storeDir, "store", "", "Persisted store directory (default: <workspace>/.codegraf)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to codegraf.hcl (default: <workspace>/codegraf.hcl if present)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codegraf version %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

var rootCmd = &cobra.Command{
	Use:     "codegraf",
	Short:   "codegraf: cross-language code intelligence engine",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stdioMode == mcpMode {
			return fmt.Errorf("exactly one of --stdio or --mcp must be set")
		}

		root := workspaceRoot
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			root = wd
		}

		cfg, err := loadConfig(root)
		if err != nil {
			return err
		}

		coord, ws, err := openCoordinator(root, cfg)
		if err != nil {
			return err
		}
		if ws != nil {
			defer func() {
				if err := ws.Close(); err != nil {
					log.Printf("codegraf: release workspace lock: %v", err)
				}
			}()
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			cancel()
		}()

		if mcpMode {
			return mcp.New(coord, Version).Serve(ctx)
		}
		return lsp.New(coord).Serve(ctx, stdioReadWriteCloser{})
	},
}

// loadConfig reads <root>/codegraf.hcl if present (or --config's path),
// falling back to config.Default() when neither exists.
func loadConfig(root string) (config.Config, error) {
	path := configPath
	if path == "" {
		candidate := filepath.Join(root, "codegraf.hcl")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openCoordinator opens (or creates) the workspace's persisted store and
// wires a Coordinator against it, restoring from the existing graph when
// meta.json's fingerprint matches and starting fresh otherwise (§6's
// persisted-layout rebuild rule). When another process holds the store's
// lock, it wires an in-memory Coordinator and opens no KV file.
func openCoordinator(root string, cfg config.Config) (*coordinator.Coordinator, *workspace.Workspace, error) {
	dir := storeDir
	if dir == "" {
		dir = filepath.Join(root, ".codegraf")
	}

	ws, err := workspace.Open(root, dir, cfg.EnabledLanguages, time.Now().Unix())
	if err != nil {
		return nil, nil, fmt.Errorf("open workspace: %w", err)
	}

	if !ws.Lock.Locked {
		log.Printf("codegraf: store %s is locked by another process; using an in-memory store", dir)
		coord, err := coordinator.New(nil, nil, resolve.DefaultConfig(), cfg.CacheCapacity)
		if err != nil {
			return nil, ws, fmt.Errorf("wire coordinator: %w", err)
		}
		coord.CacheEnabled = cfg.CacheEnabled
		coord.Query.EntryRoots = cfg.EntryRoots
		return coord, ws, nil
	}

	graphPersist, err := graph.OpenPersistent(ws.GraphDBPath())
	if err != nil {
		return nil, ws, fmt.Errorf("open graph store: %w", err)
	}
	memPersist, err := graph.OpenPersistent(ws.MemoryDBPath())
	if err != nil {
		return nil, ws, fmt.Errorf("open memory store: %w", err)
	}

	resolverCfg := resolve.DefaultConfig()

	var coord *coordinator.Coordinator
	if ws.RebuildRequired {
		coord, err = coordinator.New(graphPersist, memPersist, resolverCfg, cfg.CacheCapacity)
	} else {
		coord, err = coordinator.Restore(graphPersist, memPersist, resolverCfg, cfg.CacheCapacity)
	}
	if err != nil {
		return nil, ws, fmt.Errorf("wire coordinator: %w", err)
	}
	coord.CacheEnabled = cfg.CacheEnabled
	coord.Query.EntryRoots = cfg.EntryRoots
	return coord, ws, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// stdioReadWriteCloser adapts os.Stdin/os.Stdout to io.ReadWriteCloser for
// the LSP transport's jsonrpc2.NewBufferedStream, closing both on Close.
type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error {
	_ = os.Stdin.Close()
	return os.Stdout.Close()
}
