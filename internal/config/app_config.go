// Package config loads mtc configuration from global and local YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/mtc/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds every configurable setting. Unset fields
// keep their zero value and fall back to built-in defaults.
type ApplicationConfiguration struct {
	Source      WikiConfiguration     `mapstructure:"source"`
	Destination WikiConfiguration     `mapstructure:"destination"`
	Transfer    TransferConfiguration `mapstructure:"transfer"`
	Ledger      LedgerConfiguration   `mapstructure:"ledger"`
	Server      ServerConfiguration   `mapstructure:"server"`
}

// WikiConfiguration points at one MediaWiki Action API.
type WikiConfiguration struct {
	Endpoint  string        `mapstructure:"endpoint"`
	UserAgent string        `mapstructure:"user_agent"`
	BatchSize *int          `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// TransferConfiguration controls filtering, rewriting, and rendering.
type TransferConfiguration struct {
	Concurrency         *int     `mapstructure:"concurrency"`
	Format              string   `mapstructure:"format"`
	APIEndpoint         string   `mapstructure:"api"`
	Blacklist           []string `mapstructure:"blacklist"`
	Whitelist           []string `mapstructure:"whitelist"`
	BlacklistPage       string   `mapstructure:"blacklist_page"`
	WhitelistPage       string   `mapstructure:"whitelist_page"`
	OwnWorkCategory     string   `mapstructure:"own_work_category"`
	ExcludedTemplates   []string `mapstructure:"excluded_templates"`
	AttributionProject  string   `mapstructure:"attribution_project"`
	AttributionLanguage string   `mapstructure:"attribution_language"`
	InterwikiPrefix     string   `mapstructure:"interwiki_prefix"`
	SourceSite          string   `mapstructure:"source_site"`
}

// LedgerConfiguration controls the record of generated transfers.
type LedgerConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfiguration controls `mtc serve`.
type ServerConfiguration struct {
	Address   string `mapstructure:"address"`
	MaxTitles *int   `mapstructure:"max_titles"`
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if globalPath := GlobalPath(utils.ConfigFileName); globalPath != "" {
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Transfer.Blacklist = utils.DeduplicateStrings(utils.NonEmptyTrimmed(merged.Transfer.Blacklist))
	merged.Transfer.Whitelist = utils.DeduplicateStrings(utils.NonEmptyTrimmed(merged.Transfer.Whitelist))
	merged.Transfer.ExcludedTemplates = utils.DeduplicateStrings(utils.NonEmptyTrimmed(merged.Transfer.ExcludedTemplates))

	return merged, nil
}

// GlobalPath joins name onto the global configuration directory. It returns
// an empty string when the home directory is unknown.
func GlobalPath(name string) string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil || homeDirectory == "" {
		return ""
	}
	return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, name)
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Source = result.Source.merge(override.Source)
	result.Destination = result.Destination.merge(override.Destination)
	result.Transfer = result.Transfer.merge(override.Transfer)
	result.Ledger = result.Ledger.merge(override.Ledger)
	result.Server = result.Server.merge(override.Server)
	return result
}

func (config WikiConfiguration) merge(override WikiConfiguration) WikiConfiguration {
	result := config
	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.UserAgent != "" {
		result.UserAgent = override.UserAgent
	}
	if override.BatchSize != nil {
		result.BatchSize = cloneInt(override.BatchSize)
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	return result
}

func (config TransferConfiguration) merge(override TransferConfiguration) TransferConfiguration {
	result := config
	if override.Concurrency != nil {
		result.Concurrency = cloneInt(override.Concurrency)
	}
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.APIEndpoint != "" {
		result.APIEndpoint = override.APIEndpoint
	}
	if len(override.Blacklist) > 0 {
		result.Blacklist = append([]string{}, override.Blacklist...)
	}
	if len(override.Whitelist) > 0 {
		result.Whitelist = append([]string{}, override.Whitelist...)
	}
	if override.BlacklistPage != "" {
		result.BlacklistPage = override.BlacklistPage
	}
	if override.WhitelistPage != "" {
		result.WhitelistPage = override.WhitelistPage
	}
	if override.OwnWorkCategory != "" {
		result.OwnWorkCategory = override.OwnWorkCategory
	}
	// excluded templates accumulate across files
	if len(override.ExcludedTemplates) > 0 {
		result.ExcludedTemplates = append(append([]string{}, result.ExcludedTemplates...), override.ExcludedTemplates...)
	}
	if override.AttributionProject != "" {
		result.AttributionProject = override.AttributionProject
	}
	if override.AttributionLanguage != "" {
		result.AttributionLanguage = override.AttributionLanguage
	}
	if override.InterwikiPrefix != "" {
		result.InterwikiPrefix = override.InterwikiPrefix
	}
	if override.SourceSite != "" {
		result.SourceSite = override.SourceSite
	}
	return result
}

func (config LedgerConfiguration) merge(override LedgerConfiguration) LedgerConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Path != "" {
		result.Path = override.Path
	}
	return result
}

func (config ServerConfiguration) merge(override ServerConfiguration) ServerConfiguration {
	result := config
	if override.Address != "" {
		result.Address = override.Address
	}
	if override.MaxTitles != nil {
		result.MaxTitles = cloneInt(override.MaxTitles)
	}
	return result
}

// IsEnabled reports whether the ledger should be used; it is on unless disabled.
func (config LedgerConfiguration) IsEnabled() bool {
	return config.Enabled == nil || *config.Enabled
}

// IntOrDefault dereferences value, falling back to defaultValue when unset.
func IntOrDefault(value *int, defaultValue int) int {
	if value == nil {
		return defaultValue
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
