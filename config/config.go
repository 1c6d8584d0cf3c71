package config

import (
	"fmt"
	"log"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Config holds all application configuration, read from .env, the process
// environment and command-line flags (flags win).
type Config struct {
	DBDriver         string `long:"db-driver" env:"DB_DRIVER" default:"postgres" choice:"postgres" choice:"sqlite" description:"Property store backend"`
	PostgresHost     string `long:"pg-host" env:"POSTGRES_HOST" default:"localhost" description:"PostgreSQL host"`
	PostgresPort     string `long:"pg-port" env:"POSTGRES_PORT" default:"5432" description:"PostgreSQL port"`
	PostgresUser     string `long:"pg-user" env:"POSTGRES_USER" default:"scraper" description:"PostgreSQL user"`
	PostgresPassword string `long:"pg-password" env:"POSTGRES_PASSWORD" default:"scraper123" description:"PostgreSQL password"`
	PostgresDB       string `long:"pg-db" env:"POSTGRES_DB" default:"prospects" description:"PostgreSQL database"`
	PostgresSSLMode  string `long:"pg-sslmode" env:"POSTGRES_SSLMODE" default:"disable" description:"PostgreSQL sslmode"`
	SQLitePath       string `long:"sqlite-path" env:"SQLITE_PATH" default:"./data/prospects.db" description:"SQLite database file"`

	SourcesDir    string `long:"sources-dir" env:"SOURCES_DIR" description:"Directory of source YAML files overriding the built-in ones"`
	CSVOutputPath string `long:"csv-output" env:"CSV_OUTPUT_PATH" description:"Write each scraped batch to this CSV file (disabled when empty)"`

	ChromeBin    string        `long:"chrome-bin" env:"CHROME_BIN" description:"Chrome/Chromium binary"`
	Headful      bool          `long:"headful" env:"HEADFUL" description:"Show the browser window"`
	NavTimeout   time.Duration `long:"nav-timeout" env:"NAV_TIMEOUT" default:"30s" description:"Budget for a single page navigation"`
	SettleDelay  time.Duration `long:"settle-delay" env:"SETTLE_DELAY" default:"2s" description:"Pause after a page load before reading the DOM"`
	RequestDelay time.Duration `long:"request-delay" env:"REQUEST_DELAY" default:"2s" description:"Minimum interval between page loads"`
	MaxPages     int           `long:"max-pages" env:"MAX_PAGES" description:"Listing pages to crawl per source (0 uses the source's max_pages, else 5)"`
	MaxRetries   int           `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Attempts for browser launch and database connection"`
	MaxParallel  int           `long:"max-parallel" env:"MAX_PARALLEL_SOURCES" default:"2" description:"Sources scraped at once by --all"`

	Port   string `long:"port" env:"PORT" default:"8080" description:"HTTP port for --serve"`
	APIKey string `long:"api-key" env:"API_ACCESS_KEY" description:"Key required on scrape endpoints (optional)"`
	Debug  bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Source    string `long:"source" short:"s" description:"Source to scrape"`
	SearchURL string `long:"search-url" description:"Search results URL (defaults to the source's search_url)"`
	All       bool   `long:"all" description:"Scrape every configured source"`
	Serve     bool   `long:"serve" description:"Run the HTTP trigger server"`
	Insights  bool   `long:"insights" description:"Print stored-data insights after scraping"`
}

// Load reads the .env file and parses args on top of the environment.
// It returns nil, nil when help was requested.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
