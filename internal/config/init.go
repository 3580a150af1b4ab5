package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/mtc/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	// DefaultBlacklistPage lists categories whose files must not be transferred.
	DefaultBlacklistPage = "Wikipedia:MTC!/Blacklist"
	// DefaultWhitelistPage lists categories whose files may be transferred.
	DefaultWhitelistPage = "Wikipedia:MTC!/Whitelist"

	defaultConfigurationTemplate = `source:
  endpoint: https://en.wikipedia.org/w/api.php
  batch_size: 50
  timeout: 30s
destination:
  endpoint: https://commons.wikimedia.org/w/api.php
  batch_size: 50
  timeout: 30s
transfer:
  concurrency: 4
  format: raw
  blacklist: []
  whitelist: []
  blacklist_page: "Wikipedia:MTC!/Blacklist"
  whitelist_page: "Wikipedia:MTC!/Whitelist"
  own_work_category: "Category:Self-published work"
  excluded_templates:
    - Bots
    - Copy to Wikimedia Commons
  attribution_project: w
  attribution_language: en
  interwiki_prefix: w
  source_site: en.wikipedia
ledger:
  enabled: true
server:
  address: 127.0.0.1:8080
  max_titles: 50
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the default configuration to the requested target.
func InitializeConfiguration(options InitOptions) (string, error) {
	target := options.Target
	if target == "" {
		target = InitTargetLocal
	}
	var destinationPath string
	switch target {
	case InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", err)
			}
			workingDirectory = current
		}
		destinationPath = filepath.Join(workingDirectory, utils.ConfigFileName)
	case InitTargetGlobal:
		destinationPath = GlobalPath(utils.ConfigFileName)
		if destinationPath == "" {
			return "", fmt.Errorf("resolve home directory for configuration")
		}
		configurationDirectory := filepath.Dir(destinationPath)
		if err := os.MkdirAll(configurationDirectory, 0o755); err != nil {
			return "", fmt.Errorf("create configuration directory %s: %w", configurationDirectory, err)
		}
	default:
		return "", fmt.Errorf("unsupported init target %q", target)
	}

	if _, err := os.Stat(destinationPath); err == nil {
		if !options.Force {
			return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, err)
	}

	if err := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), 0o600); err != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}

	return destinationPath, nil
}
