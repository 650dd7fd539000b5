// Package config resolves the run settings from defaults, an optional YAML
// file and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// TargetURL is the page listing the companies
const TargetURL = "https://www.suape.pe.gov.br/pt/negocios/mapa-de-empresas"

const (
	DefaultOutputPath       = "empresas_suape.geojson"
	DefaultLegacyOutputPath = "empresas_suape.json"
	DefaultOfflinePath      = "suape_mapa_empresas.html"
	DefaultCacheTTL         = 6 * time.Hour
)

// DefaultBrowserPath is empty: the browser strategy then looks for a Chrome
// executable in PATH
const DefaultBrowserPath = ""

// Output formats
const (
	FormatGeoJSON = "geojson"
	FormatJSON    = "json"
)

// Config is passed explicitly to every component
type Config struct {
	URL         string        `yaml:"-"`
	OutputPath  string        `yaml:"output"`
	Format      string        `yaml:"format"`
	OfflinePath string        `yaml:"offline"`
	BrowserPath string        `yaml:"browser"`
	BrowserPort int           `yaml:"port"`
	RedisAddr   string        `yaml:"redis"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	Verbose     bool          `yaml:"verbose"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		URL:         TargetURL,
		Format:      FormatGeoJSON,
		OfflinePath: DefaultOfflinePath,
		BrowserPath: DefaultBrowserPath,
		CacheTTL:    DefaultCacheTTL,
	}
}

// Load applies the YAML file at path (if any) and then the environment on top of the defaults
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.URL = TargetURL
	return nil
}

// applyEnv reads the environment. The first name of each list wins; the others
// are the names used by earlier versions of the tool
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(names ...string) (string, bool) {
		for _, n := range names {
			if v, ok := lookup(n); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	if v, ok := get("OUTPUT_PATH"); ok {
		c.OutputPath = v
	}
	if v, ok := get("OUTPUT_FORMAT"); ok {
		c.Format = v
	}
	if v, ok := get("HTML_FALLBACK"); ok {
		c.OfflinePath = v
	}
	if v, ok := get("CHROME_PATH"); ok {
		c.BrowserPath = v
	}
	if v, ok := get("BROWSER_PORT", "SELENIUM_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid browser port %q: %w", v, err)
		}
		c.BrowserPort = port
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.RedisAddr = v
	}
	if v, ok := get("CACHE_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid cache TTL %q: %w", v, err)
		}
		c.CacheTTL = ttl
	}
	return nil
}

// Output returns the file the collection is written to. Without an explicit
// path the name follows the format
func (c Config) Output() string {
	if p := strings.TrimSpace(c.OutputPath); p != "" {
		return p
	}
	if c.Format == FormatJSON {
		return DefaultLegacyOutputPath
	}
	return DefaultOutputPath
}

// Validate reports settings that cannot work
func (c Config) Validate() error {
	var errs []error
	if c.Format != FormatGeoJSON && c.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Format))
	}
	if c.BrowserPort < 0 || c.BrowserPort > 65535 {
		errs = append(errs, fmt.Errorf("browser port %d out of range", c.BrowserPort))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("negative cache TTL %s", c.CacheTTL))
	}
	return errors.Join(errs...)
}
