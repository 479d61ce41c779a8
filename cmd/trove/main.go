package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/config"
	"github.com/hpungsan/trove/internal/mcp"
	"github.com/hpungsan/trove/internal/reaper"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"search": true, "recent": true, "similar": true, "get": true,
	"stats": true, "cleanup": true, "analyze": true, "export": true,
	"put-thinking": true, "put-research": true, "put-agent": true,
	"ui": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _____ ___  _____ _____ ___
  |_   _| _ \/ _ \ \ / / __|
    | | |   / (_) \ V /| _|
    |_| |_|_\\___/ \_/ |___|

  Local execution artifact cache

  Usage: trove <command> [options]
         trove --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before cache init (no cache needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".trove")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	c, err := cache.Open(baseDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open cache: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(c)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'trove --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default), with the retention reaper in the background
	startReaper(c)
	if err := mcp.Run(c, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// startReaper launches periodic retention cleanup for long-running modes.
func startReaper(c *cache.Cache) {
	interval := time.Duration(c.Config().ReaperIntervalHours) * time.Hour
	if interval <= 0 {
		return
	}
	go reaper.New(c).Run(context.Background(), interval)
}
