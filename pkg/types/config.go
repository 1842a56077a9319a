package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pmc-harvest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the esearch query step.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the esearch retmax parameter (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// APIKey is an optional NCBI API key for higher request limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Email and Tool identify the caller to NCBI, as E-utilities asks.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
	Tool  string `json:"tool,omitempty" yaml:"tool,omitempty" mapstructure:"tool"`

	// BaseURL overrides the esearch endpoint (e.g. for a mirror). Empty means
	// the NCBI default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// SaveDir, when non-empty, receives a copy of the raw esearch XML.
	SaveDir string `json:"save_dir,omitempty" yaml:"save_dir,omitempty" mapstructure:"save_dir"`
}

// FetchConfig holds settings for the archive fetch step.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the PMC file server root that OA file list paths are
	// relative to (default "https://ftp.ncbi.nlm.nih.gov/pub/pmc/").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// IndexPath is the SQLite OA file list index. Empty disables the index
	// resolver.
	IndexPath string `json:"index_path,omitempty" yaml:"index_path,omitempty" mapstructure:"index_path"`

	// UseOAService enables the PMC OA web service resolver.
	UseOAService bool `json:"use_oa_service" yaml:"use_oa_service" mapstructure:"use_oa_service"`

	// OAServiceURL overrides the OA web service endpoint. Empty means the
	// NCBI default.
	OAServiceURL string `json:"oa_service_url,omitempty" yaml:"oa_service_url,omitempty" mapstructure:"oa_service_url"`

	// PreferHTTPS rewrites ftp:// archive links to the HTTPS mirror.
	PreferHTTPS bool `json:"prefer_https" yaml:"prefer_https" mapstructure:"prefer_https"`
}

// ExtractConfig holds settings for the extract step.
type ExtractConfig struct {
	// Collect lists doublestar patterns (e.g. "**/*.pdf"). When set, matching
	// files are moved into the output directory and the extracted tree is
	// removed.
	Collect []string `json:"collect,omitempty" yaml:"collect,omitempty" mapstructure:"collect"`
}

// HarvestConfig groups the stage configurations for a full run.
type HarvestConfig struct {
	Search  SearchConfig  `json:"search" yaml:"search" mapstructure:"search"`
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Extract ExtractConfig `json:"extract" yaml:"extract" mapstructure:"extract"`

	// OutDir is the directory archives are unpacked into (default "pmc_dataset").
	OutDir string `json:"out_dir" yaml:"out_dir" mapstructure:"out_dir"`
}
