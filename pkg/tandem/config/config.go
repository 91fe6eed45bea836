// Package config loads tandem settings from YAML files. User-level
// settings load first, then the project-level file overrides field by
// field.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// MCPServerEntry is one configured MCP server.
type MCPServerEntry struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Settings is the on-disk configuration shape.
type Settings struct {
	Backend         string           `yaml:"backend"`
	Model           string           `yaml:"model"`
	ApprovalMode    string           `yaml:"approval_mode"`
	AuthType        string           `yaml:"auth_type"`
	MaxSessionTurns int              `yaml:"max_session_turns"`
	CoreTools       []string         `yaml:"core_tools"`
	ExcludeTools    []string         `yaml:"exclude_tools"`
	MCPServers      []MCPServerEntry `yaml:"mcp_servers"`
	LogLevel        string           `yaml:"log_level"`
}

const settingsDir = ".tandem"
const settingsFile = "settings.yaml"

// Load reads the user-level settings, then the project-level file in
// cwd, with the latter taking precedence. Missing files are fine; a
// file that exists but fails to parse is an error.
func Load(cwd string) (*Settings, error) {
	s := &Settings{}

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, settingsDir, settingsFile)
		if err := loadFromFile(userPath, s); err != nil {
			return nil, err
		}
	}

	projectPath := filepath.Join(cwd, settingsDir, settingsFile)
	if err := loadFromFile(projectPath, s); err != nil {
		return nil, err
	}

	return s, nil
}

// loadFromFile merges one settings file into s. Unmarshal overwrites
// only the fields present in the YAML, which gives later files
// precedence per field.
func loadFromFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return tandemerrs.NewConfigError(
			tandemerrs.ErrCodeInvalidSettings,
			"read settings file "+path,
			err,
		)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return tandemerrs.NewConfigError(
			tandemerrs.ErrCodeInvalidSettings,
			"parse settings file "+path,
			err,
		)
	}

	return nil
}
