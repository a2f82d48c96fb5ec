// Package config resolves run settings from flags, the environment and a .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/naka-gawa/github-osrcp/internal/gateway"
	"github.com/naka-gawa/github-osrcp/internal/report"
)

// Keys shared between viper and the command's flag bindings.
const (
	KeyToken             = "token"
	KeyAPIURL            = "api_url"
	KeyGraphQLURL        = "graphql_url"
	KeyProfileBaseURL    = "profile_base_url"
	KeyBaseBranch        = "base_branch"
	KeyAPI               = "api"
	KeyFormat            = "format"
	KeyOutput            = "output"
	KeyVerbose           = "verbose"
	KeyWithContributions = "with_contributions"
	KeyContinueOnError   = "continue_on_error"
	KeyLookupConcurrency = "lookup_concurrency"
)

// Config holds all configuration for a run.
type Config struct {
	// GitHub settings
	Token      string
	APIURL     string
	GraphQLURL string
	API        string

	// Run settings
	BaseBranch        string
	ContinueOnError   bool
	LookupConcurrency int
	Verbose           bool

	// Report settings
	Output            string
	Format            report.Format
	ProfileBaseURL    string
	WithContributions bool
}

// New returns a viper instance with the environment bindings and defaults used by Load.
func New() *viper.Viper {
	v := viper.New()

	_ = v.BindEnv(KeyToken, "GITHUB_AUTH_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv(KeyAPIURL, "GITHUB_API_URL")
	_ = v.BindEnv(KeyGraphQLURL, "GITHUB_GRAPHQL_URL")
	_ = v.BindEnv(KeyProfileBaseURL, "OSRCP_PROFILE_BASE_URL")
	_ = v.BindEnv(KeyBaseBranch, "OSRCP_BASE_BRANCH")

	v.SetDefault(KeyProfileBaseURL, report.DefaultProfileBaseURL)
	v.SetDefault(KeyBaseBranch, "main")
	v.SetDefault(KeyAPI, gateway.APIREST)
	v.SetDefault(KeyFormat, string(report.FormatCSV))
	v.SetDefault(KeyLookupConcurrency, 1)

	return v
}

// Load reads the configuration from v. A missing token is not an error here;
// the GitHub gateway rejects every request without one.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Token:             strings.TrimSpace(v.GetString(KeyToken)),
		APIURL:            v.GetString(KeyAPIURL),
		GraphQLURL:        v.GetString(KeyGraphQLURL),
		API:               strings.ToLower(v.GetString(KeyAPI)),
		BaseBranch:        v.GetString(KeyBaseBranch),
		ContinueOnError:   v.GetBool(KeyContinueOnError),
		LookupConcurrency: v.GetInt(KeyLookupConcurrency),
		Verbose:           v.GetBool(KeyVerbose),
		Output:            v.GetString(KeyOutput),
		ProfileBaseURL:    v.GetString(KeyProfileBaseURL),
		WithContributions: v.GetBool(KeyWithContributions),
	}

	format, err := report.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return nil, err
	}
	cfg.Format = format
	if cfg.Output == "" {
		cfg.Output = "./" + cfg.ReportWriter().DefaultFileName()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks enum and range values and normalizes the profile base URL.
func (c *Config) validate() error {
	switch c.API {
	case gateway.APIREST, gateway.APIGraphQL:
	default:
		return fmt.Errorf("invalid api: %s (must be '%s' or '%s')", c.API, gateway.APIREST, gateway.APIGraphQL)
	}
	if c.BaseBranch == "" {
		return fmt.Errorf("base branch must not be empty")
	}
	if c.LookupConcurrency <= 0 {
		return fmt.Errorf("lookup concurrency must be greater than 0")
	}
	if c.ProfileBaseURL == "" {
		return fmt.Errorf("profile base url must not be empty")
	}
	if !strings.HasSuffix(c.ProfileBaseURL, "/") {
		c.ProfileBaseURL += "/"
	}
	return nil
}

// GatewayOptions returns the options for gateway.New.
func (c *Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		Token:             c.Token,
		API:               c.API,
		APIURL:            c.APIURL,
		GraphQLURL:        c.GraphQLURL,
		LookupConcurrency: c.LookupConcurrency,
	}
}

// ReportWriter returns the writer for the configured report settings.
func (c *Config) ReportWriter() *report.Writer {
	return &report.Writer{
		Format:            c.Format,
		ProfileBaseURL:    c.ProfileBaseURL,
		WithContributions: c.WithContributions,
	}
}
