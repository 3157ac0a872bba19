package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/osutil"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "go-batch-runner"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "BATCH_RUNNER"
)

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Relay settings
	Relay struct {
		URL         string        `mapstructure:"url"`          // relay endpoint the runner posts to
		Timeout     time.Duration `mapstructure:"timeout"`      // 0 keeps transport defaults
		Listen      string        `mapstructure:"listen"`       // serve: listen address
		UpstreamURL string        `mapstructure:"upstream_url"` // serve: workflow run API
		UploadURL   string        `mapstructure:"upload_url"`   // serve: workflow file upload API
		StorageDir  string        `mapstructure:"storage_dir"`  // serve: local file store, empty disables it
		PublicURL   string        `mapstructure:"public_url"`   // serve: base of returned file URLs
	} `mapstructure:"relay"`

	// Project settings
	Project struct {
		Dir    string `mapstructure:"dir"`     // directory of <id>.yaml project files
		APIURL string `mapstructure:"api_url"` // base URL of the project service
	} `mapstructure:"project"`

	// Runner settings
	Runner struct {
		RowDelay time.Duration `mapstructure:"row_delay"`
		APIToken string        `mapstructure:"api_token"`
	} `mapstructure:"runner"`

	// Asset settings
	Assets struct {
		StorageURL    string        `mapstructure:"storage_url"`
		DownloadDelay time.Duration `mapstructure:"download_delay"`
		DownloadDir   string        `mapstructure:"download_dir"`
	} `mapstructure:"assets"`

	// Export settings
	Export struct {
		Locale string `mapstructure:"locale"`
	} `mapstructure:"export"`

	// Snapshot settings
	Snapshot struct {
		Provider string        `mapstructure:"provider"` // file, redis or none
		Dir      string        `mapstructure:"dir"`
		Debounce time.Duration `mapstructure:"debounce"`
		MaxWait  time.Duration `mapstructure:"max_wait"`
		TTL      time.Duration `mapstructure:"ttl"`

		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"snapshot"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string

	// Ensure thread safety
	initOnce sync.Once
)

// Initialize sets up the global configuration once
func Initialize(cfgFile string) error {
	var err error

	initOnce.Do(func() {
		var cfg *AppConfig
		var used string
		cfg, used, err = Load(cfgFile)
		if cfg == nil {
			return
		}

		Instance = *cfg
		ConfigFile = used
		ConfigLoaded = used != ""

		ensureDirectories()
	})

	return err
}

// Reload replaces the global configuration from an explicit file
func Reload(cfgFile string) error {
	cfg, used, err := Load(cfgFile)
	if err != nil {
		return err
	}
	Instance = *cfg
	ConfigFile = used
	ConfigLoaded = used != ""
	return nil
}

// Load reads configuration from defaults, the config file and the
// environment. It returns the file actually used ("" when none was found).
func Load(cfgFile string) (*AppConfig, string, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var readErr error
	used := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Only report an error if the config file was found but couldn't be read
			readErr = fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		used = v.ConfigFileUsed()
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("error parsing config: %w", err)
	}
	cfg.LogFile = resolveLogFile(cfg.LogFile)

	return &cfg, used, readErr
}

// resolveLogFile places a bare log file name in the platform log directory.
// Paths with a directory part are used as given.
func resolveLogFile(name string) string {
	if name == "" || filepath.Base(name) != name {
		return name
	}
	dir, err := fsutil.GetLogDir(AppName)
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")

	// Relay defaults
	v.SetDefault("relay.url", "http://localhost:8080/api/proxy/run")
	v.SetDefault("relay.timeout", time.Duration(0))
	v.SetDefault("relay.listen", ":8080")
	v.SetDefault("relay.upstream_url", "https://api.coze.cn/v1/workflow/run")
	v.SetDefault("relay.upload_url", "https://api.coze.cn/v1/files/upload")
	v.SetDefault("relay.storage_dir", "uploads")
	v.SetDefault("relay.public_url", "")

	// Project defaults
	v.SetDefault("project.dir", "projects")
	v.SetDefault("project.api_url", "")

	// Runner defaults
	v.SetDefault("runner.row_delay", 200*time.Millisecond)
	v.SetDefault("runner.api_token", "")

	// Asset defaults
	v.SetDefault("assets.storage_url", "http://localhost:8080/api/upload")
	v.SetDefault("assets.download_delay", time.Second)
	v.SetDefault("assets.download_dir", "downloads")

	// Export defaults
	v.SetDefault("export.locale", "en")

	// Snapshot defaults
	v.SetDefault("snapshot.provider", "file")
	cacheDir, err := fsutil.GetCacheDir(AppName)
	if err == nil {
		v.SetDefault("snapshot.dir", filepath.Join(cacheDir, "snapshots"))
	} else {
		v.SetDefault("snapshot.dir", filepath.Join("cache", "snapshots"))
	}
	v.SetDefault("snapshot.debounce", 500*time.Millisecond)
	v.SetDefault("snapshot.max_wait", 2*time.Second)
	v.SetDefault("snapshot.ttl", 7*24*time.Hour)
	v.SetDefault("snapshot.redis.addr", "localhost:6379")
	v.SetDefault("snapshot.redis.password", "")
	v.SetDefault("snapshot.redis.db", 0)
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	// Always check current directory first
	v.AddConfigPath(".")

	// In dev mode, only use current directory and the local config directory
	if osutil.IsDevEnvironment() {
		configDir, err := fsutil.GetConfigDir(AppName)
		if err == nil {
			v.AddConfigPath(configDir)
		}
		return
	}

	// In CI/Pipeline, only use current directory and explicit CI directories
	if osutil.IsRunningInPipeline() {
		v.AddConfigPath("/etc/" + AppName)
		return
	}

	configDir, err := fsutil.GetConfigDir(AppName)
	if err == nil {
		v.AddConfigPath(configDir)
	}

	systemConfigDir, err := fsutil.GetSystemConfigDir(AppName)
	if err == nil {
		v.AddConfigPath(systemConfigDir)
	}
}

// ensureDirectories creates necessary directories based on configuration
func ensureDirectories() {
	if osutil.IsRunningInPipeline() {
		return
	}

	if Instance.LogFile != "" {
		_ = fsutil.CreateDirIfNotExists(filepath.Dir(Instance.LogFile))
	}

	if Instance.Snapshot.Provider == "file" && Instance.Snapshot.Dir != "" {
		_ = fsutil.CreateDirIfNotExists(Instance.Snapshot.Dir)
	}
}
