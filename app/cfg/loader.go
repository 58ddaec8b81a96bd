package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

const (
	CommandFetch = "fetch"
	CommandList  = "list"
	CommandServe = "serve"
)

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Paths
	FeedsDir   string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing source configuration files"`
	OutputDir  string `long:"output-dir" env:"OUTPUT_DIR" description:"Directory for timestamped JSON output files (disabled when empty)"`
	ArchiveDB  string `long:"archive-db" env:"ARCHIVE_DB" description:"SQLite archive path (disabled when empty)"`
	MailConfig string `long:"mail-config" env:"MAIL_CONFIG" default:"config/mail.json" description:"Mail credential file used by --mail"`

	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port for the serve command"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for archive endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; RSS-Harvest/1.0)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for published timestamps (e.g., UTC, Asia/Tokyo)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type fetchCmd struct {
	URL      string `long:"url" description:"Fetch an ad-hoc feed URL instead of a configured source"`
	Label    string `long:"label" description:"Label for an ad-hoc feed"`
	MaxItems int    `long:"max-items" description:"Override the source entry ceiling"`
	NoEnrich bool   `long:"no-enrich" description:"Skip article enrichment"`
	Mail     bool   `long:"mail" description:"Mail a digest of the result"`

	Args struct {
		Source string `positional-arg-name:"source" description:"Configured source name"`
	} `positional-args:"yes"`
}

type listCmd struct{}

type serveCmd struct{}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments; nil means os.Args[1:].
func LoadArgs(args []string) (*Cfg, error) {
	// A missing .env file is fine; explicit environment always wins.
	_ = godotenv.Load()

	var raw rawCfg
	var fetch fetchCmd

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.AddCommand(CommandFetch, "Fetch one source", "Run the feed pipeline once and print the JSON payload", &fetch); err != nil {
		return nil, fmt.Errorf("failed to register command: %w", err)
	}
	if _, err := parser.AddCommand(CommandList, "List sources", "List configured sources", &listCmd{}); err != nil {
		return nil, fmt.Errorf("failed to register command: %w", err)
	}
	if _, err := parser.AddCommand(CommandServe, "Serve HTTP", "Expose the pipeline over HTTP", &serveCmd{}); err != nil {
		return nil, fmt.Errorf("failed to register command: %w", err)
	}

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedsDir:     raw.FeedsDir,
		OutputDir:    raw.OutputDir,
		ArchiveDB:    raw.ArchiveDB,
		MailConfig:   raw.MailConfig,
		Port:         raw.Port,
		APIAccessKey: raw.APIAccessKey,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if parser.Active != nil {
		cfg.Command = parser.Active.Name
	}

	if cfg.Command == CommandFetch {
		cfg.Source = fetch.Args.Source
		cfg.URL = fetch.URL
		cfg.Label = fetch.Label
		cfg.MaxItems = fetch.MaxItems
		cfg.NoEnrich = fetch.NoEnrich
		cfg.Mail = fetch.Mail

		if cfg.Source == "" && cfg.URL == "" {
			return nil, fmt.Errorf("fetch requires a source name or --url")
		}
		if cfg.MaxItems < 0 {
			return nil, fmt.Errorf("max items must be non-negative")
		}
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
