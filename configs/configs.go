package configs

import (
	"os"
	"time"

	"github.com/lomik/zapwriter"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	ReleaseSourceAPI  = "api"
	ReleaseSourceAtom = "atom"
)

// DefaultPackages is the catalog of pysal packages tracked by default.
var DefaultPackages = []string{
	"access",
	"esda",
	"giddy",
	"inequality",
	"libpysal",
	"mapclassify",
	"mgwr",
	"momepy",
	"pointpats",
	"pysal",
	"segregation",
	"spaghetti",
	"spglm",
	"spint",
	"splot",
	"spopt",
	"spreg",
	"spvcm",
	"tobler",
}

type NotificationConfig struct {
	Type      string  `yaml:"type"`
	Token     string  `yaml:"token"`
	APIServer string  `yaml:"api_server"`
	ChatIDs   []int64 `yaml:"chat_ids"`
}

var DefaultLoggerConfig = zapwriter.Config{
	Logger:           "",
	File:             "stdout",
	Level:            "debug",
	Encoding:         "json",
	EncodingTime:     "iso8601",
	EncodingDuration: "seconds",
}

type Configuration struct {
	Logger       []zapwriter.Config `yaml:"logger"`
	DatabaseType string             `yaml:"database_type"`
	DatabaseURL  string             `yaml:"database_url"`

	// Owner of the tracked packages
	Owner string `yaml:"owner"`
	// NewsOwner/NewsRepo point to the news site repository, its last commit is the watermark
	NewsOwner string   `yaml:"news_owner"`
	NewsRepo  string   `yaml:"news_repo"`
	Packages  []string `yaml:"packages"`
	OutputDir string   `yaml:"output_dir"`

	GitHubAPIURL  string        `yaml:"github_api_url"`
	GitHubURL     string        `yaml:"github_url"`
	ReleaseSource string        `yaml:"release_source"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	UserAgent     string        `yaml:"user_agent"`

	Endpoints map[string]NotificationConfig `yaml:"endpoints"`
}

func Default() Configuration {
	return Configuration{
		Logger:        []zapwriter.Config{DefaultLoggerConfig},
		DatabaseType:  "sqlite3",
		DatabaseURL:   "./release2news.db",
		Owner:         "pysal",
		NewsOwner:     "pysal",
		NewsRepo:      "pysal.github.io",
		Packages:      append([]string(nil), DefaultPackages...),
		OutputDir:     ".",
		GitHubAPIURL:  "https://api.github.com",
		GitHubURL:     "https://github.com",
		ReleaseSource: ReleaseSourceAPI,
		HTTPTimeout:   30 * time.Second,
		UserAgent:     "release2news/1.0",
	}
}

var Config = Default()

// Load reads yaml config from path on top of defaults
func Load(path string) (Configuration, error) {
	cfg := Default()
	cfgRaw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "unable to load config file")
	}

	err = yaml.Unmarshal(cfgRaw, &cfg)
	if err != nil {
		return cfg, errors.Wrap(err, "error parsing config file")
	}

	return cfg, cfg.Validate()
}

func (c *Configuration) Validate() error {
	if c.DatabaseType != "sqlite3" {
		return errors.Errorf("unsupported database type %q, supported: sqlite3", c.DatabaseType)
	}
	if c.ReleaseSource != ReleaseSourceAPI && c.ReleaseSource != ReleaseSourceAtom {
		return errors.Errorf("unknown release source %q, supported: %s, %s", c.ReleaseSource, ReleaseSourceAPI, ReleaseSourceAtom)
	}
	if len(c.Packages) == 0 {
		return errors.New("no packages configured")
	}
	if c.Owner == "" || c.NewsOwner == "" || c.NewsRepo == "" {
		return errors.New("owner, news_owner and news_repo must be set")
	}
	for name, e := range c.Endpoints {
		if e.Type != "telegram" {
			return errors.Errorf("endpoint %q: unknown type %q, supported: telegram", name, e.Type)
		}
	}
	return nil
}
