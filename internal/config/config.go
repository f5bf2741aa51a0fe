package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// ErrMissing is wrapped by Validate when required settings are unset.
var ErrMissing = errors.New("missing required configuration")

const (
	BackendIMAP  = "imap"
	BackendGmail = "gmail"
)

type Config struct {
	MailBackend string

	IMAPHost   string
	IMAPPort   int
	EmailUser  string
	EmailPass  string
	IMAPSource string
	IMAPTarget string

	NewsletterSender  string
	NewsletterSubject string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string

	PlaylistPrefix string
	PlaylistPublic bool

	Home string

	WritePause   time.Duration
	ResolvePause time.Duration
	ArchivePause time.Duration

	LogLevel log.Level
}

// DBPath is the SQLite database holding tokens and the run ledger.
func (c *Config) DBPath() string { return filepath.Join(c.Home, "pitchlist.db") }

// IMAPAddr is host:port of the IMAP server.
func (c *Config) IMAPAddr() string {
	return c.IMAPHost + ":" + strconv.Itoa(c.IMAPPort)
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// Load reads the environment, after filling unset or empty variables from
// envFile when it exists. An empty envFile means ".env" in the working
// directory.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		vals, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
		for k, v := range vals {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	conf := &Config{
		MailBackend:         strings.ToLower(getEnv("MAIL_BACKEND", BackendIMAP)),
		IMAPHost:            getEnv("IMAP_HOST", "imap.mail.me.com"),
		EmailUser:           getEnv("EMAIL_USER", ""),
		EmailPass:           getEnv("EMAIL_PASS", ""),
		IMAPSource:          getEnv("IMAP_SOURCE", "INBOX"),
		IMAPTarget:          getEnv("IMAP_TARGET", ""),
		NewsletterSender:    getEnv("NEWSLETTER_SENDER", "newsletter@pitchfork.com"),
		NewsletterSubject:   getEnv("NEWSLETTER_SUBJECT", "Best New Albums"),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyRedirectURI:  getEnv("SPOTIFY_REDIRECT_URI", "http://127.0.0.1:8888/callback"),
		PlaylistPrefix:      getEnv("PLAYLIST_PREFIX", "Pitchfork Best Albums"),
	}

	var errs []error
	var err error
	if conf.IMAPPort, err = strconv.Atoi(getEnv("IMAP_PORT", "993")); err != nil {
		errs = append(errs, fmt.Errorf("IMAP_PORT: %w", err))
	}
	if conf.PlaylistPublic, err = strconv.ParseBool(getEnv("PLAYLIST_PUBLIC", "false")); err != nil {
		errs = append(errs, fmt.Errorf("PLAYLIST_PUBLIC: %w", err))
	}
	for _, d := range []struct {
		key  string
		def  string
		into *time.Duration
	}{
		{"WRITE_PAUSE", "1s", &conf.WritePause},
		{"RESOLVE_PAUSE", "300ms", &conf.ResolvePause},
		{"ARCHIVE_PAUSE", "200ms", &conf.ArchivePause},
	} {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil || v < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", d.key, getEnv(d.key, d.def)))
			continue
		}
		*d.into = v
	}
	if conf.LogLevel, err = log.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	home := getEnv("PITCHLIST_HOME", "")
	if home == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		home = filepath.Join(dir, "pitchlist")
	}
	conf.Home = home

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return conf, nil
}

// Need names the collaborators a command talks to.
type Need struct {
	Mail    bool
	Catalog bool
}

// Validate reports every required setting that is missing for need.
func (c *Config) Validate(need Need) error {
	var missing []string
	if need.Mail {
		switch c.MailBackend {
		case BackendIMAP:
			if c.EmailUser == "" {
				missing = append(missing, "EMAIL_USER")
			}
			if c.EmailPass == "" {
				missing = append(missing, "EMAIL_PASS")
			}
		case BackendGmail:
		default:
			return fmt.Errorf("MAIL_BACKEND %q: want %s or %s", c.MailBackend, BackendIMAP, BackendGmail)
		}
	}
	if need.Catalog {
		if c.SpotifyClientID == "" {
			missing = append(missing, "SPOTIFY_CLIENT_ID")
		}
		if c.SpotifyClientSecret == "" {
			missing = append(missing, "SPOTIFY_CLIENT_SECRET")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
