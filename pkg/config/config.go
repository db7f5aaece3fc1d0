// pkg/config/config.go - configuration settings for jcimporter.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SentinelVersion is the "no known target version" value. A title imported
// with this version is always treated as needing remediation.
const SentinelVersion = "0.0.0.0"

// DefaultGroupKeyword requests the derived group naming scheme instead of an
// operator-supplied group name.
const DefaultGroupKeyword = "default"

// RootUserID is the JumpCloud root service user, the default executor for
// generated commands.
const RootUserID = "000000000000000000000000"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Configuration holds the configurable options for jcimporter in YAML format.
type Configuration struct {
	APIKey         string `yaml:"APIKey"`
	APIURL         string `yaml:"APIURL"`
	AppName        string `yaml:"AppName"`
	AppVersion     string `yaml:"AppVersion"`
	GroupName      string `yaml:"GroupName"`
	DeployType     string `yaml:"DeployType"`
	ServiceUserID  string `yaml:"ServiceUserID"`
	Distribution   string `yaml:"Distribution"`
	Bucket         string `yaml:"Bucket"`
	BucketRegion   string `yaml:"BucketRegion"`
	PkgPath        string `yaml:"PkgPath"`
	HardwareVendor string `yaml:"HardwareVendor"`
	TriggerEnabled bool   `yaml:"TriggerEnabled"`
	TriggerRepeat  string `yaml:"TriggerRepeat"`
	TriggerCron    string `yaml:"TriggerCron"`
	TimeoutSeconds int    `yaml:"TimeoutSeconds"`
	PageSize       int    `yaml:"PageSize"`
	Workers        int    `yaml:"Workers"`
	LogPath        string `yaml:"LogPath"`
	LogLevel       string `yaml:"LogLevel"`
	Debug          bool   `yaml:"Debug"`
	Verbose        bool   `yaml:"Verbose"`
}

// DefaultPath returns the default config file location for the current user.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jcimporter.yaml"
	}
	return filepath.Join(home, "Library", "Preferences", "jcimporter.yaml")
}

// LoadConfig loads the configuration from a YAML file, then applies JC_*
// environment variable overrides. A missing file is not an error as long as
// the environment supplies the required values; validation happens later so
// CLI flags get a chance to fill the gaps.
func LoadConfig(path string) (*Configuration, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration is fine.
	default:
		return nil, fmt.Errorf("reading configuration file %s: %w", path, err)
	}

	applyEnvOverrides(config)
	return config, nil
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		APIURL:         "https://console.jumpcloud.com",
		AppVersion:     SentinelVersion,
		GroupName:      DefaultGroupKeyword,
		DeployType:     "self",
		ServiceUserID:  RootUserID,
		Distribution:   "aws",
		HardwareVendor: "Apple Inc.",
		TriggerRepeat:  "week",
		TimeoutSeconds: 30,
		PageSize:       100,
		Workers:        5,
		LogLevel:       "INFO",
	}
}

// applyEnvOverrides reads the JC_* environment variables the original AutoPkg
// recipes exposed, plus a few jcimporter additions.
func applyEnvOverrides(config *Configuration) {
	loadString("JC_API", &config.APIKey)
	loadString("JC_URL", &config.APIURL)
	loadString("JC_SYSGROUP", &config.GroupName)
	loadString("JC_TYPE", &config.DeployType)
	loadString("JC_USER", &config.ServiceUserID)
	loadString("JC_DIST", &config.Distribution)
	loadString("JC_BUCKET", &config.Bucket)
	loadString("JC_BUCKET_REGION", &config.BucketRegion)
	loadBool("JC_TRIGGER", &config.TriggerEnabled)
	loadString("JC_TRIGGER_REPEAT", &config.TriggerRepeat)
	loadString("JC_TRIGGER_CRON", &config.TriggerCron)
}

// loadString copies an environment value into target if it is set and non-empty.
func loadString(name string, target *string) {
	if val := os.Getenv(name); val != "" {
		*target = val
	}
}

// loadBool parses an environment value into target if it is set and parseable.
func loadBool(name string, target *bool) {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*target = parsed
		}
	}
}

// Validate checks that the configuration can drive a run. Every failure
// wraps ErrInvalidConfig.
func (c *Configuration) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: APIKey is required (JC_API)", ErrInvalidConfig)
	}
	if c.AppName == "" {
		return fmt.Errorf("%w: AppName is required", ErrInvalidConfig)
	}
	switch c.DeployType {
	case "self", "auto", "update", "manual":
	default:
		return fmt.Errorf("%w: DeployType must be one of self, auto, update, manual (got %q)", ErrInvalidConfig, c.DeployType)
	}
	// The original AutoPkg recipes pass JC_DIST in uppercase; normalize so
	// every later comparison sees one canonical value.
	c.Distribution = strings.ToLower(c.Distribution)
	switch c.Distribution {
	case "aws":
		if c.PkgPath == "" {
			return fmt.Errorf("%w: PkgPath is required for the aws distribution target", ErrInvalidConfig)
		}
		if c.Bucket == "" {
			return fmt.Errorf("%w: Bucket is required for the aws distribution target", ErrInvalidConfig)
		}
	case "none":
	default:
		return fmt.Errorf("%w: Distribution must be aws or none (got %q)", ErrInvalidConfig, c.Distribution)
	}
	if c.TriggerEnabled {
		if c.TriggerCron == "" {
			return fmt.Errorf("%w: TriggerCron is required when TriggerEnabled is set", ErrInvalidConfig)
		}
		switch c.TriggerRepeat {
		case "minute", "hour", "day", "week", "month":
		default:
			return fmt.Errorf("%w: TriggerRepeat %q is not a recognized repeat unit", ErrInvalidConfig, c.TriggerRepeat)
		}
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: PageSize must be positive", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: Workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// Dump renders the effective configuration as YAML with the API key masked.
func (c *Configuration) Dump() (string, error) {
	masked := *c
	if masked.APIKey != "" {
		masked.APIKey = "********"
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("serializing configuration: %w", err)
	}
	return string(data), nil
}
