package setup

import (
	"fmt"
)

// CLI implements the "setup" subcommand of the MCP server binary.
type CLI struct{}

// NewCLI creates a setup CLI.
func NewCLI() *CLI {
	return &CLI{}
}

// Run dispatches a setup command.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "claude-desktop":
		return c.registerClaudeDesktop(args[1:])
	case "status":
		return c.showStatus()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Println(`
labsense MCP Server Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  claude-desktop  Register labsense with Claude Desktop
  status          Show current setup status

Options for claude-desktop:
  --binary, -b    Path to the mcp-server binary (default: auto-detect)
  --data-dir, -d  Data directory for feedback and cache files
  --catalog, -c   Path to a SQLite catalog database

Examples:
  mcp-server setup claude-desktop
  mcp-server setup claude-desktop --binary /usr/local/bin/mcp-server
  mcp-server setup status`)
	return nil
}

func (c *CLI) registerClaudeDesktop(args []string) error {
	var opts Options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				opts.BinaryPath = args[i+1]
				i++
			}
		case "--data-dir", "-d":
			if i+1 < len(args) {
				opts.DataDir = args[i+1]
				i++
			}
		case "--catalog", "-c":
			if i+1 < len(args) {
				opts.CatalogPath = args[i+1]
				i++
			}
		default:
			return fmt.Errorf("unknown option: %s", args[i])
		}
	}

	if err := Register(opts); err != nil {
		return err
	}

	configPath, _ := ConfigPath()
	fmt.Printf("Registered labsense with Claude Desktop (%s).\n", configPath)
	fmt.Println("Restart Claude Desktop to pick up the change.")
	return nil
}

func (c *CLI) showStatus() error {
	status, err := GetStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Claude Desktop config: %s\n", status.ConfigPath)
	if status.Registered {
		fmt.Printf("Registered: yes (binary %s)\n", status.BinaryPath)
		fmt.Printf("Data directory: %s\n", status.DataDir)
	} else {
		fmt.Println("Registered: no")
	}

	if len(status.Issues) > 0 {
		fmt.Println("\nIssues:")
		for _, issue := range status.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}
	return nil
}
