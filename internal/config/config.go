package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
)

// Config is the server configuration. Zero values are filled from the
// default tags before config.toml is decoded on top.
type Config struct {
	Listen  string  `toml:"listen" default:":8080"`
	Release bool    `toml:"release"`
	Backend Backend `toml:"backend"`
	Session Session `toml:"session"`
	Log     Log     `toml:"log"`
}

// Backend locates the prediction and auth services.
type Backend struct {
	PredictURL  string   `toml:"predict_url" default:"http://127.0.0.1:5000"`
	AuthURL     string   `toml:"auth_url" default:"http://127.0.0.1:5000"`
	Timeout     Duration `toml:"timeout"`
	UploadField string   `toml:"upload_field" default:"image"`
	AcceptedExt string   `toml:"accepted_ext" default:".bmp"`
	MaxUploadMB int      `toml:"max_upload_mb" default:"10"`
}

// Session configures the visitor cookie and the controller registry.
type Session struct {
	Secret      string   `toml:"secret"`
	SecretFile  string   `toml:"secret_file" default:"session.key"`
	CookieName  string   `toml:"cookie_name" default:"bloodscan"`
	MaxAge      int      `toml:"max_age" default:"86400"`
	IdleTimeout Duration `toml:"idle_timeout"`
}

type Log struct {
	Level       string   `toml:"level" default:"info"`
	Dir         string   `toml:"dir"`
	JSON        bool     `toml:"json"`
	RotateEvery Duration `toml:"rotate_every"`
	Keep        Duration `toml:"keep"`
}

// Duration decodes TOML strings such as "30m" into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "duration %q", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const (
	defaultIdleTimeout = 30 * time.Minute
	defaultRotateEvery = 24 * time.Hour
	defaultKeep        = 7 * 24 * time.Hour
	maxUploadMB        = 64
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	c.Session.IdleTimeout.Duration = defaultIdleTimeout
	c.Log.RotateEvery.Duration = defaultRotateEvery
	c.Log.Keep.Duration = defaultKeep
	return c
}

// Load reads path on top of the defaults, applies BLOODSCAN_* environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "decode %s", path)
		}
	}
	c.applyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("BLOODSCAN_LISTEN", &c.Listen)
	set("BLOODSCAN_PREDICT_URL", &c.Backend.PredictURL)
	set("BLOODSCAN_AUTH_URL", &c.Backend.AuthURL)
	set("BLOODSCAN_SESSION_SECRET", &c.Session.Secret)
	set("BLOODSCAN_LOG_LEVEL", &c.Log.Level)
	set("BLOODSCAN_LOG_DIR", &c.Log.Dir)
}

// Validate normalises URLs and the accepted extension and clamps sizes.
func (c *Config) Validate() error {
	c.Backend.PredictURL = strings.TrimRight(strings.TrimSpace(c.Backend.PredictURL), "/")
	c.Backend.AuthURL = strings.TrimRight(strings.TrimSpace(c.Backend.AuthURL), "/")
	if c.Backend.PredictURL == "" {
		return errors.New("backend.predict_url is required")
	}
	if c.Backend.AuthURL == "" {
		c.Backend.AuthURL = c.Backend.PredictURL
	}
	if c.Backend.Timeout.Duration < 0 {
		return errors.Errorf("backend.timeout must not be negative, got %s", c.Backend.Timeout)
	}

	ext := strings.ToLower(strings.TrimSpace(c.Backend.AcceptedExt))
	if ext == "" {
		ext = ".bmp"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Backend.AcceptedExt = ext

	if c.Backend.MaxUploadMB < 1 {
		c.Backend.MaxUploadMB = 1
	}
	if c.Backend.MaxUploadMB > maxUploadMB {
		c.Backend.MaxUploadMB = maxUploadMB
	}
	if c.Backend.UploadField == "" {
		c.Backend.UploadField = "image"
	}

	if c.Session.IdleTimeout.Duration <= 0 {
		c.Session.IdleTimeout.Duration = defaultIdleTimeout
	}
	if c.Session.MaxAge < 0 {
		c.Session.MaxAge = 0
	}
	if c.Log.RotateEvery.Duration <= 0 {
		c.Log.RotateEvery.Duration = defaultRotateEvery
	}
	return nil
}

// MaxUploadBytes is the request body limit for multipart file routes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Backend.MaxUploadMB) << 20
}
