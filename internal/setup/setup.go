// Package setup registers the labsense MCP server with Claude Desktop so
// AI agents can evaluate lab panels locally.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const serverName = "labsense"
const binaryName = "mcp-server"

// ClaudeDesktopConfig mirrors Claude Desktop's configuration file.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig is one MCP server entry in the Claude Desktop config.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options control the Claude Desktop registration.
type Options struct {
	BinaryPath  string // Path to the mcp-server binary; auto-detected when empty
	DataDir     string // Data directory for feedback and cache files
	CatalogPath string // Optional SQLite catalog path
}

// ConfigPath returns the platform-specific path of Claude Desktop's
// configuration file.
func ConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadConfig reads the Claude Desktop configuration, returning an empty
// one when the file does not exist yet.
func LoadConfig(configPath string) (*ClaudeDesktopConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClaudeDesktopConfig{MCPServers: make(map[string]MCPServerConfig)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ClaudeDesktopConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return &config, nil
}

// SaveConfig writes the Claude Desktop configuration, creating the
// directory when needed.
func SaveConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or updates the labsense entry in the Claude Desktop
// configuration.
func Register(opts Options) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		binaryPath, err = findBinary()
		if err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	serverConfig := MCPServerConfig{
		Command: binaryPath,
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		serverConfig.Env["LABSENSE_DATA_DIR"] = opts.DataDir
	}
	if opts.CatalogPath != "" {
		serverConfig.Env["LABSENSE_CATALOG_PATH"] = opts.CatalogPath
	}

	config.MCPServers[serverName] = serverConfig
	return SaveConfig(configPath, config)
}

func findBinary() (string, error) {
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + binaryName,
		"./build/" + binaryName,
		filepath.Join(home, ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if absPath, err := filepath.Abs(loc); err == nil {
				return absPath, nil
			}
			return loc, nil
		}
	}
	return "", fmt.Errorf("binary %q not found in PATH or common locations", binaryName)
}

// Status describes the current Claude Desktop integration state.
type Status struct {
	ConfigPath string
	Registered bool
	BinaryPath string
	DataDir    string
	Issues     []string
}

// GetStatus inspects the Claude Desktop configuration and the referenced
// binary and data directory.
func GetStatus() (*Status, error) {
	status := &Status{Issues: []string{}}

	configPath, err := ConfigPath()
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not determine Claude Desktop config path: %v", err))
		return status, nil
	}
	status.ConfigPath = configPath

	config, err := LoadConfig(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		return status, nil
	}

	serverConfig, ok := config.MCPServers[serverName]
	if !ok {
		status.Issues = append(status.Issues, "labsense is not registered with Claude Desktop")
		return status, nil
	}

	status.Registered = true
	status.BinaryPath = serverConfig.Command
	if _, err := os.Stat(serverConfig.Command); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", serverConfig.Command))
	}

	status.DataDir = serverConfig.Env["LABSENSE_DATA_DIR"]
	if status.DataDir == "" {
		home, _ := os.UserHomeDir()
		status.DataDir = filepath.Join(home, ".labsense")
	}
	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory does not exist: %s", status.DataDir))
	}

	return status, nil
}
