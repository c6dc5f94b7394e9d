// Package conf loads and validates application configuration via viper.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/obralens/obralens/internal/errors"
)

// LogConfig holds file logging settings.
type LogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"maxsizemb" mapstructure:"maxsizemb"`
	MaxBackups int    `yaml:"maxbackups" mapstructure:"maxbackups"`
	MaxAgeDays int    `yaml:"maxagedays" mapstructure:"maxagedays"`
}

// MainConfig holds application-wide settings.
type MainConfig struct {
	Name string    `yaml:"name"`
	Log  LogConfig `yaml:"log"`
}

// WebServerConfig holds HTTP server settings.
type WebServerConfig struct {
	Port      string `yaml:"port"`
	Debug     bool   `yaml:"debug"`
	BodyLimit string `yaml:"bodylimit" mapstructure:"bodylimit"`
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	JWTSecret     string        `yaml:"jwtsecret" mapstructure:"jwtsecret"`
	TokenDuration time.Duration `yaml:"tokenduration" mapstructure:"tokenduration"`
	BcryptCost    int           `yaml:"bcryptcost" mapstructure:"bcryptcost"`
}

// StorageConfig holds filesystem layout settings. All paths are created on
// startup if missing.
type StorageConfig struct {
	DataFile    string `yaml:"datafile" mapstructure:"datafile"`       // flat JSON store
	UploadsDir  string `yaml:"uploadsdir" mapstructure:"uploadsdir"`   // served read-only under /files
	StagingRoot string `yaml:"stagingroot" mapstructure:"stagingroot"` // review batches
}

// ProjectsDir returns the directory for project-level uploads (covers, BIM models).
func (s *StorageConfig) ProjectsDir() string {
	return filepath.Join(s.UploadsDir, "projects")
}

// AvatarsDir returns the directory for profile avatars.
func (s *StorageConfig) AvatarsDir() string {
	return filepath.Join(s.UploadsDir, "avatars")
}

// ProcessedImagesDir returns the permanent home of committed review images.
func (s *StorageConfig) ProcessedImagesDir() string {
	return filepath.Join(s.UploadsDir, "processed_images")
}

// DetectionConfig holds settings for the external detection service.
type DetectionConfig struct {
	ServiceURL string        `yaml:"serviceurl" mapstructure:"serviceurl"`
	Timeout    time.Duration `yaml:"timeout"`
	Workers    int           `yaml:"workers"` // bounded concurrency for batch staging
}

// ReportConfig holds PDF rendering settings.
type ReportConfig struct {
	RenderTimeout time.Duration `yaml:"rendertimeout" mapstructure:"rendertimeout"`
}

// Settings is the root configuration structure.
type Settings struct {
	Main      MainConfig      `yaml:"main"`
	WebServer WebServerConfig `yaml:"webserver"`
	Security  SecurityConfig  `yaml:"security"`
	Storage   StorageConfig   `yaml:"storage"`
	Detection DetectionConfig `yaml:"detection"`
	Report    ReportConfig    `yaml:"report"`
}

// Load reads configuration from defaults, an optional config.yaml in the
// search paths, and OBRALENS_* environment variables, in increasing precedence.
func Load() (*Settings, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(dir, "obralens"))
	}
	viper.SetEnvPrefix("OBRALENS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		// No config file is fine, defaults plus env apply.
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.Newf("unmarshaling configuration: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// EnsureDirectories creates every configured directory that must exist before
// the server starts serving requests.
func (s *Settings) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(s.Storage.DataFile),
		s.Storage.UploadsDir,
		s.Storage.ProjectsDir(),
		s.Storage.AvatarsDir(),
		s.Storage.ProcessedImagesDir(),
		s.Storage.StagingRoot,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Newf("creating directory %s: %w", dir, err).
				Component("conf").
				Category(errors.CategoryFileIO).
				Build()
		}
	}
	return nil
}

// DumpYAML renders the effective configuration as YAML, used by the config
// subcommand.
func (s *Settings) DumpYAML() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling configuration: %w", err)
	}
	return string(out), nil
}
