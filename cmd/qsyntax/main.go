package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/qsyntax/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"chat": true, "send": true, "new": true, "sessions": true,
	"delete": true, "transcript": true,
	"export": true, "import": true,
	"separate": true, "render": true,
	"serve": true, "config": true,
	"help": true,
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
	// Global flags come before the subcommand
	if arg == "--verbose" {
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
    ___  ___ _   _ _ __ | |_ __ ___  __
   / _ \/ __| | | | '_ \| __/ _' \ \/ /
  | (_) \__ \ |_| | | | | || (_| |>  <
   \__, |___/\__, |_| |_|\__\__,_/_/\_\
      |_|    |___/

  Chat with a language model, split web code into HTML, CSS and JS

  Usage: qsyntax <command> [options]
         qsyntax chat
         qsyntax serve
         qsyntax --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before anything is opened
	if isHelpOrVersion() {
		app := newCLIApp(appOptions{})
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

	baseDir := filepath.Join(homeDir, ".qsyntax")

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(appOptions{BaseDir: baseDir})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'qsyntax --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). Stdout carries the protocol, so nothing
	// else may write to it.
	if err := runMCP(baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runMCP(baseDir string) error {
	env := newAppEnv(appOptions{BaseDir: baseDir})
	defer env.Close()

	m, err := env.Manager(context.Background())
	if err != nil {
		return err
	}
	if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
		env.logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	return mcp.Run(m, env.cfg, Version)
}
