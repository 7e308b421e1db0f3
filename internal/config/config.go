package config

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Config holds server configuration.
type Config struct {
	Port            int           `env:"TOKENIZER_PORT" envDefault:"8080"`
	DBPath          string        `env:"TOKENIZER_DB_PATH" envDefault:"data/tokenizer.db"`
	DataDir         string        `env:"TOKENIZER_DATA_DIR" envDefault:"data/files"`
	BaseURL         string        `env:"TOKENIZER_BASE_URL" envDefault:"http://localhost:8080/files"`
	UploadDir       string        `env:"TOKENIZER_UPLOAD_DIR" envDefault:"tokenizer"`
	TokenSize       int           `env:"TOKENIZER_TOKEN_SIZE" envDefault:"400"`
	DefaultFramePC  string        `env:"TOKENIZER_DEFAULT_FRAME_PC"`
	DefaultFrameNPC string        `env:"TOKENIZER_DEFAULT_FRAME_NPC"`
	Background      string        `env:"TOKENIZER_BACKGROUND"`
	FetchTimeout    time.Duration `env:"TOKENIZER_FETCH_TIMEOUT" envDefault:"12s"`
	SessionIdleTTL  time.Duration `env:"TOKENIZER_SESSION_IDLE_TTL" envDefault:"30m"`
	SweepSchedule   string        `env:"TOKENIZER_SWEEP_SCHEDULE" envDefault:"@every 1m"`
	SeedCSV         string        `env:"TOKENIZER_SEED_CSV" envDefault:"data/actors.csv"`
	CanUpload       bool          `env:"TOKENIZER_CAN_UPLOAD" envDefault:"true"`
	CanBrowse       bool          `env:"TOKENIZER_CAN_BROWSE" envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path for actor records")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Root directory of the file store")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Public URL of the file store root")
	fs.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "Directory below the store root for uploaded images")
	fs.IntVar(&cfg.TokenSize, "token-size", cfg.TokenSize, "Token canvas size in pixels")
	fs.StringVar(&cfg.DefaultFramePC, "frame-pc", cfg.DefaultFramePC, "Default token frame for player characters")
	fs.StringVar(&cfg.DefaultFrameNPC, "frame-npc", cfg.DefaultFrameNPC, "Default token frame for NPCs")
	fs.StringVar(&cfg.Background, "background", cfg.Background, "Canvas background color (hex), empty for transparent")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for image downloads")
	fs.DurationVar(&cfg.SessionIdleTTL, "session-idle-ttl", cfg.SessionIdleTTL, "Idle time before an editing session is closed")
	fs.StringVar(&cfg.SweepSchedule, "sweep-schedule", cfg.SweepSchedule, "Cron schedule of the idle session sweep")
	fs.StringVar(&cfg.SeedCSV, "seed-csv", cfg.SeedCSV, "CSV file of actors loaded at startup")
	fs.BoolVar(&cfg.CanUpload, "can-upload", cfg.CanUpload, "Allow uploading local files")
	fs.BoolVar(&cfg.CanBrowse, "can-browse", cfg.CanBrowse, "Allow browsing the file store")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.UploadDir = strings.Trim(strings.TrimSpace(cfg.UploadDir), "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports invalid settings.
func (c Config) Validate() error {
	var errs []error
	if c.TokenSize <= 0 {
		errs = append(errs, fmt.Errorf("token size must be positive, got %d", c.TokenSize))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if _, err := c.BackgroundColor(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DefaultFrames maps actor kind to frame path. Leading and trailing slashes
// are trimmed; empty entries mean no frame.
func (c Config) DefaultFrames() map[string]string {
	return map[string]string{
		"pc":  strings.Trim(strings.TrimSpace(c.DefaultFramePC), "/"),
		"npc": strings.Trim(strings.TrimSpace(c.DefaultFrameNPC), "/"),
	}
}

// BackgroundColor parses Background. Empty means fully transparent.
func (c Config) BackgroundColor() (color.NRGBA, error) {
	s := strings.TrimSpace(c.Background)
	if s == "" || strings.EqualFold(s, "transparent") {
		return color.NRGBA{}, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("background color %q: %w", c.Background, err)
	}
	r, g, b := col.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
