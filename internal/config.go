package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"

	"github.com/starford/bugwall/internal/catalog"
	"github.com/starford/bugwall/internal/contribute"
	"github.com/starford/bugwall/internal/corpus"
	"github.com/starford/bugwall/internal/filter"
	"github.com/starford/bugwall/internal/render"
	"github.com/starford/bugwall/internal/search"
	"github.com/starford/bugwall/internal/storage"
)

// Content backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Content    ContentConfig     `yaml:"content"`
	Search     SearchConfig      `yaml:"search"`
	Render     RenderConfig      `yaml:"render"`
	Sort       SortConfig        `yaml:"sort"`
	Contribute ContributeConfig  `yaml:"contribute"`
	Watch      WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Content, &c.Search, &c.Render, &c.Sort, &c.Contribute, &c.Watch,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig selects and configures the content store.
type ContentConfig struct {
	Backend    string   `yaml:"backend"`
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
	// LoadConcurrency bounds parallel document loads; 0 uses the default.
	LoadConcurrency  int      `yaml:"load_concurrency"`
	ReloadPerRequest bool     `yaml:"reload_per_request"`
	S3               S3Config `yaml:"s3"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendS3)),
		validation.Field(&c.Path, validation.When(c.Backend == BackendFS, validation.Required)),
		validation.Field(&c.LoadConcurrency, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if c.Backend == BackendS3 {
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("content.s3: %w", err)
		}
	}
	return nil
}

// S3Config holds the object store settings for the s3 backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.SecretKey, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

// S3Options converts c to store options for the s3 backend.
func (c *ContentConfig) S3Options() storage.S3Options {
	return storage.S3Options{
		Endpoint:   c.S3.Endpoint,
		AccessKey:  c.S3.AccessKey,
		SecretKey:  c.S3.SecretKey,
		Bucket:     c.S3.Bucket,
		Prefix:     c.S3.Prefix,
		Region:     c.S3.Region,
		UseSSL:     c.S3.UseSSL,
		Extensions: c.Extensions,
	}
}

// SearchConfig tunes ranking. Weights are keyed by field name; fields left
// out keep their default weight.
type SearchConfig struct {
	Threshold float64            `yaml:"threshold"`
	Weights   map[string]float64 `yaml:"weights"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// Options merges the configured weights over the defaults.
func (c *SearchConfig) Options() search.Options {
	opts := search.DefaultOptions()
	opts.Threshold = c.Threshold
	for k, w := range c.Weights {
		opts.Weights[search.Field(k)] = w
	}
	return opts
}

// RenderConfig configures the Markdown renderer.
type RenderConfig struct {
	HighlightStyle string `yaml:"highlight_style"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HighlightStyle, validation.Required, validation.By(func(v any) error {
			if s, _ := v.(string); !render.HasStyle(s) {
				return errors.New("unknown highlight style")
			}
			return nil
		})),
	)
}

// SortConfig configures result ordering.
type SortConfig struct {
	// Locale is the BCP 47 tag used to collate titles.
	Locale string `yaml:"locale"`
}

// Validate validates the sort configuration.
func (c *SortConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Locale, validation.Required, validation.By(func(v any) error {
			s, _ := v.(string)
			_, err := language.Parse(s)
			return err
		})),
	)
}

// ContributeConfig points contribution drafts at an issue tracker.
type ContributeConfig struct {
	Repository string `yaml:"repository"`
	Directory  string `yaml:"directory"`
}

// Validate validates the contribute configuration.
func (c *ContributeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Repository, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			u, err := url.Parse(s)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return errors.New("must be an absolute URL")
			}
			return nil
		})),
		validation.Field(&c.Directory, validation.Required),
	)
}

// Target returns the issue tracker target for drafts.
func (c *ContributeConfig) Target() contribute.Target {
	return contribute.Target{Repository: c.Repository, Directory: c.Directory}
}

// WatchConfig controls live reloading of the fs backend.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Backend:         BackendFS,
			Path:            "./bugs",
			Extensions:      storage.DefaultExtensions,
			LoadConcurrency: corpus.DefaultConcurrency,
		},
		Search: SearchConfig{
			Threshold: search.DefaultThreshold,
		},
		Render: RenderConfig{
			HighlightStyle: render.DefaultStyle,
		},
		Sort: SortConfig{
			Locale: filter.DefaultLocale,
		},
		Contribute: ContributeConfig{
			Directory: contribute.DefaultDirectory,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: catalog.DefaultDebounce,
		},
	}
}
