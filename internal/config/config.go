// Package config loads reddibot settings from YAML and the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeAPI    = "api"
	ModePublic = "public"
	ModeMock   = "mock"

	ProfileDefault = "default"
	ProfileStrict  = "strict"

	defaultConfigFile = "reddibot.yaml"
)

// Config is the root configuration.
// Source priority:
//  1. explicit path passed to Load;
//  2. CONFIG_PATH;
//  3. ./reddibot.yaml;
//  4. environment only.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Log       LogConfig       `yaml:"log"`
	Feed      FeedConfig      `yaml:"feed"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Publish   PublishConfig   `yaml:"publish"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Storage   StorageConfig   `yaml:"storage"`
	Lock      LockConfig      `yaml:"lock"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// FeedConfig describes where candidate posts come from.
type FeedConfig struct {
	Mode           string       `yaml:"mode" env:"COLLECTOR_MODE" env-default:"public"`
	UserAgent      string       `yaml:"user_agent" env:"REDDIT_USER_AGENT" env-default:"reddibot/1.0"`
	Limit          int          `yaml:"limit" env:"FEED_LIMIT" env-default:"100"`
	TimeWindow     string       `yaml:"time_window" env:"FEED_TIME_WINDOW" env-default:"day"`
	SubredditsFile string       `yaml:"subreddits_file" env:"SUBREDDITS_FILE"`
	Subreddits     []string     `yaml:"subreddits" env:"SUBREDDITS" env-separator:"," env-default:"aww,awwducational,rarepuppers,eyebleach,animalsbeingderps"`
	TextSubreddits []string     `yaml:"text_subreddits" env:"TEXT_SUBREDDITS" env-separator:","`
	Reddit         RedditConfig `yaml:"reddit"`
}

type RedditConfig struct {
	ClientID     string `yaml:"client_id" env:"REDDIT_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"REDDIT_CLIENT_SECRET"`
	Username     string `yaml:"username" env:"REDDIT_USERNAME"`
	Password     string `yaml:"password" env:"REDDIT_PASSWORD"`
}

// ClassifyConfig holds the inclusion rules.
type ClassifyConfig struct {
	ImageThreshold     int      `yaml:"image_threshold" env:"IMAGE_THRESHOLD" env-default:"1000"`
	TextThreshold      int      `yaml:"text_threshold" env:"TEXT_THRESHOLD" env-default:"2000"`
	MaxTitleLen        int      `yaml:"max_title_len" env:"MAX_TITLE_LEN" env-default:"280"`
	SanitizeProfile    string   `yaml:"sanitize_profile" env:"SANITIZE_PROFILE" env-default:"default"`
	AnimatedExtensions []string `yaml:"animated_extensions" env:"ANIMATED_EXTENSIONS" env-separator:"," env-default:".gif,.gifv"`
	AggregatorHosts    []string `yaml:"aggregator_hosts" env:"AGGREGATOR_HOSTS" env-separator:"," env-default:"imgur.com,www.imgur.com,m.imgur.com"`
	DirectMediaHost    string   `yaml:"direct_media_host" env:"DIRECT_MEDIA_HOST" env-default:"i.imgur.com"`
	ShortLinkDomain    string   `yaml:"short_link_domain" env:"SHORT_LINK_DOMAIN" env-default:"https://redd.it"`
	RequireImageURL    bool     `yaml:"require_image_url" env:"REQUIRE_IMAGE_URL" env-default:"true"`
}

type ScheduleConfig struct {
	Interval    time.Duration `yaml:"interval" env:"INTERVAL" env-default:"25m"`
	HistorySize int           `yaml:"history_size" env:"HISTORY_SIZE" env-default:"200"`
	WarmStart   bool          `yaml:"warm_start" env:"WARM_START" env-default:"true"`
}

// PublishConfig covers the posting service and message templates.
type PublishConfig struct {
	ScreenName    string        `yaml:"screen_name" env:"SCREEN_NAME" env-default:"awwtomatic"`
	ImageTemplate string        `yaml:"image_template" env:"IMAGE_TEMPLATE" env-default:"{{.Title}} {{.ShortLink}} \n#{{.Group}}"`
	TextTemplate  string        `yaml:"text_template" env:"TEXT_TEMPLATE" env-default:"{{.Title}} \n#{{.Group}}"`
	MaxMediaBytes int           `yaml:"max_media_bytes" env:"MAX_MEDIA_BYTES" env-default:"5000000"`
	ResizeWidth   int           `yaml:"resize_width" env:"RESIZE_WIDTH" env-default:"1000"`
	DryRun        bool          `yaml:"dry_run" env:"DRY_RUN" env-default:"false"`
	Timeout       time.Duration `yaml:"timeout" env:"PUBLISH_TIMEOUT" env-default:"30s"`
	Twitter       TwitterConfig `yaml:"twitter"`
}

type TwitterConfig struct {
	ConsumerKey       string `yaml:"consumer_key" env:"CONSUMER_KEY"`
	ConsumerSecret    string `yaml:"consumer_secret" env:"CONSUMER_SECRET"`
	AccessToken       string `yaml:"access_token" env:"ACCESS_TOKEN"`
	AccessTokenSecret string `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled" env:"DASHBOARD_ENABLED" env-default:"true"`
	Host    string `yaml:"host" env:"DASHBOARD_HOST" env-default:"0.0.0.0"`
	Port    string `yaml:"port" env:"PORT" env-default:"8080"`
}

// Addr returns host:port.
func (d DashboardConfig) Addr() string {
	return net.JoinHostPort(d.Host, d.Port)
}

type StorageConfig struct {
	JournalPath string `yaml:"journal_path" env:"JOURNAL_PATH" env-default:"data/events.ndjson"`
}

type LockConfig struct {
	Path string `yaml:"path" env:"LOCK_PATH" env-default:"data/reddibot.lock"`
}

// Load reads configuration following the priority documented on Config.
func Load(path string) (*Config, error) {
	var cfg Config

	switch {
	case path != "":
	case os.Getenv("CONFIG_PATH") != "":
		path = os.Getenv("CONFIG_PATH")
	default:
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if !slices.Contains([]string{ModeAPI, ModePublic, ModeMock}, c.Feed.Mode) {
		return fmt.Errorf("feed.mode must be one of api, public, mock (got %q)", c.Feed.Mode)
	}
	if c.Feed.Mode == ModeAPI {
		r := c.Feed.Reddit
		if r.ClientID == "" || r.ClientSecret == "" || r.Username == "" || r.Password == "" {
			return fmt.Errorf("feed.reddit credentials are required in api mode")
		}
	}
	if c.Feed.Limit <= 0 || c.Feed.Limit > 100 {
		return fmt.Errorf("feed.limit must be in 1..100")
	}
	if len(c.Feed.Subreddits) == 0 && c.Feed.SubredditsFile == "" {
		return fmt.Errorf("feed.subreddits or feed.subreddits_file is required")
	}
	if c.Classify.SanitizeProfile != ProfileDefault && c.Classify.SanitizeProfile != ProfileStrict {
		return fmt.Errorf("classify.sanitize_profile must be default or strict")
	}
	if c.Classify.MaxTitleLen <= 0 {
		return fmt.Errorf("classify.max_title_len must be > 0")
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0")
	}
	if c.Schedule.HistorySize <= 0 {
		return fmt.Errorf("schedule.history_size must be > 0")
	}
	if c.Publish.MaxMediaBytes <= 0 || c.Publish.ResizeWidth <= 0 {
		return fmt.Errorf("publish.max_media_bytes and publish.resize_width must be > 0")
	}
	if !c.Publish.DryRun {
		t := c.Publish.Twitter
		if t.ConsumerKey == "" || t.ConsumerSecret == "" || t.AccessToken == "" || t.AccessTokenSecret == "" {
			return fmt.Errorf("publish.twitter credentials are required unless publish.dry_run is set")
		}
	}
	return nil
}

// Dump renders the effective configuration as YAML with secrets masked.
func (c Config) Dump() ([]byte, error) {
	masked := c
	masked.Feed.Reddit.ClientSecret = mask(c.Feed.Reddit.ClientSecret)
	masked.Feed.Reddit.Password = mask(c.Feed.Reddit.Password)
	masked.Publish.Twitter.ConsumerSecret = mask(c.Publish.Twitter.ConsumerSecret)
	masked.Publish.Twitter.AccessToken = mask(c.Publish.Twitter.AccessToken)
	masked.Publish.Twitter.AccessTokenSecret = mask(c.Publish.Twitter.AccessTokenSecret)
	return yaml.Marshal(masked)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
