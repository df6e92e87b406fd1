package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"yt-allinone/internal/classify"
	"yt-allinone/internal/model"
	"yt-allinone/internal/runstore"
)

const (
	AppName         = "yt-allinone"
	EnvPrefix       = "YTAIO"
	DefaultAddr     = "127.0.0.1:8765"
	fallbackOutDir  = "downloads"
	defaultGraceStr = "5s"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Locale   string         `mapstructure:"locale" yaml:"locale"`

	// Path is the file the config was read from, empty when defaults were used.
	Path string `mapstructure:"-" yaml:"-"`
}

type DownloadConfig struct {
	OutDir             string `mapstructure:"out_dir" yaml:"out_dir"`
	Quality            string `mapstructure:"quality" yaml:"quality"`
	CookiesFromBrowser string `mapstructure:"cookies_from_browser" yaml:"cookies_from_browser"`
	CookiesFile        string `mapstructure:"cookies_file" yaml:"cookies_file"`
	CancelGrace        string `mapstructure:"cancel_grace" yaml:"cancel_grace"`
	Proxy              string `mapstructure:"proxy" yaml:"proxy"`
}

type EngineConfig struct {
	YTDLPPath   string `mapstructure:"ytdlp_path" yaml:"ytdlp_path"`
	FFmpegPath  string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStderr bool   `mapstructure:"include_stderr" yaml:"include_stderr"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Dir is the per-user directory holding the config file and logs.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "." + AppName
	}
	return filepath.Join(base, AppName)
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultOutDir is ~/Downloads when it exists or can still be created,
// otherwise a downloads directory relative to the working directory.
func DefaultOutDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return fallbackOutDir
	}
	candidate := filepath.Join(home, "Downloads")
	info, err := os.Stat(candidate)
	if err == nil && info.IsDir() {
		return candidate
	}
	if errors.Is(err, os.ErrNotExist) {
		return candidate
	}
	return fallbackOutDir
}

func DefaultLogPath(now time.Time) string {
	return filepath.Join(Dir(), "logs", fmt.Sprintf("%s_%s.log", AppName, now.Format("2006-01-02")))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.out_dir", DefaultOutDir())
	v.SetDefault("download.quality", string(model.QualityBest))
	v.SetDefault("download.cookies_from_browser", "")
	v.SetDefault("download.cookies_file", "")
	v.SetDefault("download.cancel_grace", defaultGraceStr)
	v.SetDefault("download.proxy", "")
	v.SetDefault("engine.ytdlp_path", "yt-dlp")
	v.SetDefault("engine.ffmpeg_path", "ffmpeg")
	v.SetDefault("engine.ffprobe_path", "ffprobe")
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stderr", true)
	v.SetDefault("locale", "en")
	v.SetDefault("server.addr", DefaultAddr)
}

// Load reads path, or the default location when path is empty. A missing
// default file is not an error: the tool runs on defaults and YTAIO_*
// environment overrides.
func Load(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	used := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		used = path
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = used

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	_ = cfg.validate()
	return &cfg
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Download.OutDir) == "" {
		c.Download.OutDir = fallbackOutDir
	}
	if strings.TrimSpace(c.Download.Quality) == "" {
		c.Download.Quality = string(model.QualityBest)
	}
	q, err := model.ParseQuality(c.Download.Quality)
	if err != nil {
		return fmt.Errorf("download.quality: %w", err)
	}
	c.Download.Quality = string(q)

	if c.Download.CookiesFromBrowser != "" {
		b, err := model.ParseBrowser(c.Download.CookiesFromBrowser)
		if err != nil {
			return fmt.Errorf("download.cookies_from_browser: %w", err)
		}
		c.Download.CookiesFromBrowser = string(b)
	}

	if strings.TrimSpace(c.Download.CancelGrace) == "" {
		c.Download.CancelGrace = defaultGraceStr
	}
	grace, err := time.ParseDuration(c.Download.CancelGrace)
	if err != nil || grace <= 0 {
		return fmt.Errorf("download.cancel_grace must be a positive duration, got %q", c.Download.CancelGrace)
	}

	if strings.TrimSpace(c.Engine.YTDLPPath) == "" {
		c.Engine.YTDLPPath = "yt-dlp"
	}
	if strings.TrimSpace(c.Engine.FFmpegPath) == "" {
		c.Engine.FFmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(c.Engine.FFprobePath) == "" {
		c.Engine.FFprobePath = "ffprobe"
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	c.Locale = classify.SupportedLocale(c.Locale)
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultAddr
	}
	return nil
}

// CancelGracePeriod is the validated download.cancel_grace.
func (c *Config) CancelGracePeriod() time.Duration {
	d, err := time.ParseDuration(c.Download.CancelGrace)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func (c *Config) Quality() model.Quality {
	q, err := model.ParseQuality(c.Download.Quality)
	if err != nil {
		return model.QualityBest
	}
	return q
}

func (c *Config) Browser() model.Browser {
	return model.Browser(c.Download.CookiesFromBrowser)
}

func (c *Config) LogPath(now time.Time) string {
	if strings.TrimSpace(c.Log.Path) != "" {
		return c.Log.Path
	}
	return DefaultLogPath(now)
}

func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	data, err := Default().YAML()
	if err != nil {
		return err
	}
	return runstore.WriteBytes(path, data)
}
