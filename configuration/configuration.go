// Package configuration loads the yaml configuration consumed by the
// pooch command line tool.
package configuration

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Configuration describes a file collection the command line tool
// operates on: where the cache lives, where the files come from, and how
// downloads behave.
//
// The configuration is read from yaml only; environment variables do not
// override its fields.
type Configuration struct {
	// Cache configures where fetched files are stored.
	Cache Cache `yaml:"cache"`

	// BaseURL is the remote location file names are appended to. It may
	// contain a {version} placeholder.
	BaseURL string `yaml:"baseurl"`

	// Registry is the path of the registry text file listing known files
	// and their hashes.
	Registry string `yaml:"registry"`

	// Version pins cache paths and URLs to a project version.
	Version Version `yaml:"version,omitempty"`

	// Download tunes the retry and update behavior of fetches.
	Download Download `yaml:"download,omitempty"`

	// Log configures the logging subsystem.
	Log Log `yaml:"log,omitempty"`
}

// Cache configures the local cache directory.
type Cache struct {
	// Dir is the cache directory; a leading ~ is expanded. Empty means
	// the OS cache directory for the application name.
	Dir string `yaml:"dir,omitempty"`

	// EnvOverride names an environment variable that replaces Dir when
	// set and non-empty.
	EnvOverride string `yaml:"envoverride,omitempty"`
}

// Version pins the version segment used in cache paths and URLs.
type Version struct {
	// Label is the project version, e.g. "v1.2.3". A + marks a
	// development build.
	Label string `yaml:"label,omitempty"`

	// DevLabel replaces the version segment for development builds.
	DevLabel string `yaml:"devlabel,omitempty"`
}

// Download tunes fetch behavior.
type Download struct {
	// Retries is how often a failed download is retried.
	Retries int `yaml:"retries,omitempty"`

	// DisableUpdates fails fetches of stale cached files instead of
	// re-downloading them.
	DisableUpdates bool `yaml:"disableupdates,omitempty"`
}

// Log configures the logging subsystem.
type Log struct {
	// Level is the logrus level name; empty means "warning".
	Level string `yaml:"level,omitempty"`
}

// LogLevel returns the parsed logrus level.
func (c *Configuration) LogLevel() (logrus.Level, error) {
	if c.Log.Level == "" {
		return logrus.WarnLevel, nil
	}
	return logrus.ParseLevel(c.Log.Level)
}

// Parse reads a Configuration from rd, rejecting unknown fields.
func Parse(rd io.Reader) (*Configuration, error) {
	var config Configuration
	dec := yaml.NewDecoder(rd)
	dec.SetStrict(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if _, err := config.LogLevel(); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return &config, nil
}
