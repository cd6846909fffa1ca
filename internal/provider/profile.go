// Package provider holds the static registry of configured LLM backends.
package provider

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Well-known provider IDs. The registry is open: config may add others as
// long as an endpoint kind is given.
const (
	IDAnthropic = "anthropic"
	IDOpenAI    = "openai"
	IDGoogle    = "google"
)

// Profile describes one configured backend. Immutable after load.
type Profile struct {
	ID            string        `yaml:"id"`
	Model         string        `yaml:"model"`
	Weight        float64       `yaml:"weight"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTokens     int           `yaml:"max_tokens"`
	Endpoint      string        `yaml:"endpoint,omitempty"` // base URL override, empty = provider default
	CredentialEnv string        `yaml:"credential_env"`     // env var holding the API key
}

// UnmarshalYAML decodes a profile, accepting Go duration strings ("30s")
// for the timeout field.
func (p *Profile) UnmarshalYAML(value *yaml.Node) error {
	type rawProfile struct {
		ID            string  `yaml:"id"`
		Model         string  `yaml:"model"`
		Weight        float64 `yaml:"weight"`
		Timeout       string  `yaml:"timeout"`
		MaxTokens     int     `yaml:"max_tokens"`
		Endpoint      string  `yaml:"endpoint"`
		CredentialEnv string  `yaml:"credential_env"`
	}
	var raw rawProfile
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.Model = raw.Model
	p.Weight = raw.Weight
	p.MaxTokens = raw.MaxTokens
	p.Endpoint = raw.Endpoint
	p.CredentialEnv = raw.CredentialEnv
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("provider %q: invalid timeout %q: %w", raw.ID, raw.Timeout, err)
		}
		p.Timeout = d
	}
	return nil
}

// Thresholds are the consensus tuning knobs carried alongside the profiles.
type Thresholds struct {
	Similarity    float64 `yaml:"similarity"`
	MinAgreement  int     `yaml:"min_agreement"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Config is the on-disk registry file format.
type Config struct {
	Providers  []Profile  `yaml:"providers"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// Registry is a read-only lookup of provider profiles. Safe for concurrent
// reads after construction.
type Registry struct {
	profiles []Profile
	byID     map[string]Profile
}

// DefaultThresholds returns the consensus defaults used when the config
// file omits them.
func DefaultThresholds() Thresholds {
	return Thresholds{Similarity: 0.7, MinAgreement: 2, MinConfidence: 0.6}
}

// Defaults returns the built-in three-provider registry configuration.
func Defaults() []Profile {
	return []Profile{
		{
			ID:            IDAnthropic,
			Model:         "claude-sonnet-4-20250514",
			Weight:        1.0,
			Timeout:       90 * time.Second,
			MaxTokens:     4096,
			CredentialEnv: "ANTHROPIC_API_KEY",
		},
		{
			ID:            IDOpenAI,
			Model:         "gpt-4o",
			Weight:        0.9,
			Timeout:       90 * time.Second,
			MaxTokens:     4096,
			CredentialEnv: "OPENAI_API_KEY",
		},
		{
			ID:            IDGoogle,
			Model:         "gemini-2.5-flash",
			Weight:        0.7,
			Timeout:       60 * time.Second,
			MaxTokens:     4096,
			CredentialEnv: "GOOGLE_API_KEY",
		},
	}
}

// NewRegistry builds a registry from the given profiles, applying per-field
// defaults and rejecting invalid entries.
func NewRegistry(profiles []Profile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	r := &Registry{byID: make(map[string]Profile, len(profiles))}
	for i, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("provider %d: missing id", i)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("provider %q: duplicate id", p.ID)
		}
		if p.Weight < 0 {
			return nil, fmt.Errorf("provider %q: negative weight %v", p.ID, p.Weight)
		}
		if p.Weight == 0 {
			p.Weight = 0.5
		}
		if p.Timeout <= 0 {
			p.Timeout = 90 * time.Second
		}
		if p.MaxTokens <= 0 {
			p.MaxTokens = 4096
		}
		r.byID[p.ID] = p
		r.profiles = append(r.profiles, p)
	}
	return r, nil
}

// LoadConfig reads a YAML registry file. A missing path returns the
// built-in defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Providers: Defaults(), Thresholds: DefaultThresholds()}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read provider config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse provider config: %w", err)
	}

	if len(fileCfg.Providers) > 0 {
		cfg.Providers = fileCfg.Providers
	}
	def := DefaultThresholds()
	if fileCfg.Thresholds.Similarity > 0 {
		cfg.Thresholds.Similarity = fileCfg.Thresholds.Similarity
	} else {
		cfg.Thresholds.Similarity = def.Similarity
	}
	if fileCfg.Thresholds.MinAgreement > 0 {
		cfg.Thresholds.MinAgreement = fileCfg.Thresholds.MinAgreement
	} else {
		cfg.Thresholds.MinAgreement = def.MinAgreement
	}
	if fileCfg.Thresholds.MinConfidence > 0 {
		cfg.Thresholds.MinConfidence = fileCfg.Thresholds.MinConfidence
	} else {
		cfg.Thresholds.MinConfidence = def.MinConfidence
	}
	return cfg, nil
}

// Get returns the profile for the given ID.
func (r *Registry) Get(id string) (Profile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns the profiles in configuration order.
func (r *Registry) All() []Profile {
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// IDs returns the provider IDs in configuration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		ids[i] = p.ID
	}
	return ids
}

// Weights returns the per-provider weight map used by consensus resolution.
func (r *Registry) Weights() map[string]float64 {
	w := make(map[string]float64, len(r.profiles))
	for _, p := range r.profiles {
		w[p.ID] = p.Weight
	}
	return w
}

// Credential resolves the API key for a profile from its environment
// variable. Empty when unset.
func (p Profile) Credential() string {
	if p.CredentialEnv == "" {
		return ""
	}
	return os.Getenv(p.CredentialEnv)
}
