package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"polyvis/internal/errors"
)

// SettingsFileName is the settings file expected at the project root.
const SettingsFileName = "polyvis.settings.json"

// Config represents the complete polyvis configuration
type Config struct {
	Paths     PathsConfig     `json:"paths" mapstructure:"paths"`
	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
	Weave     WeaveConfig     `json:"weave" mapstructure:"weave"`
	Search    SearchConfig    `json:"search" mapstructure:"search"`
	Boxer     BoxerConfig     `json:"boxer" mapstructure:"boxer"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// PathsConfig groups database and source locations
type PathsConfig struct {
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Sources  SourcesConfig  `json:"sources" mapstructure:"sources"`
}

// DatabaseConfig holds file paths for the two sqlite databases
type DatabaseConfig struct {
	Resonance string `json:"resonance" mapstructure:"resonance" validate:"required"`
	Ledger    string `json:"ledger" mapstructure:"ledger" validate:"required"`
}

// SourcesConfig lists corpus inputs
type SourcesConfig struct {
	Experience []ExperienceSource `json:"experience" mapstructure:"experience" validate:"dive"`
	Persona    PersonaConfig      `json:"persona" mapstructure:"persona"`
}

// ExperienceSource is one directory of Markdown documents.
// Type becomes the node type of every document ingested from it.
type ExperienceSource struct {
	Path string `json:"path" mapstructure:"path" validate:"required"`
	Type string `json:"type" mapstructure:"type" validate:"required"`
}

// PersonaConfig points at the lexicon and directive JSON files
type PersonaConfig struct {
	Lexicon string `json:"lexicon" mapstructure:"lexicon"`
	CDA     string `json:"cda" mapstructure:"cda"`
}

// LLMConfig selects the embedding/chat provider
type LLMConfig struct {
	ActiveProvider string                    `json:"active_provider" mapstructure:"active_provider"`
	Providers      map[string]ProviderConfig `json:"providers" mapstructure:"providers"`
}

// ProviderConfig holds connection details for one provider
type ProviderConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"baseUrl"`
	Model     string `json:"model" mapstructure:"model"`
	ChatModel string `json:"chatModel" mapstructure:"chatModel"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// EmbeddingConfig controls vector generation
type EmbeddingConfig struct {
	Dimensions int          `json:"dimensions" mapstructure:"dimensions" validate:"gt=0"`
	Daemon     DaemonConfig `json:"daemon" mapstructure:"daemon"`
}

// DaemonConfig controls the loopback embedding daemon
type DaemonConfig struct {
	Bind           string `json:"bind" mapstructure:"bind"`
	Port           int    `json:"port" mapstructure:"port" validate:"gt=0,lte=65535"`
	ProbeTimeoutMs int    `json:"probeTimeoutMs" mapstructure:"probeTimeoutMs" validate:"gt=0"`
}

// WeaveConfig holds edge-construction tunables
type WeaveConfig struct {
	LouvainThreshold  int     `json:"louvainThreshold" mapstructure:"louvainThreshold" validate:"gt=0"`
	SemanticThreshold float64 `json:"semanticThreshold" mapstructure:"semanticThreshold" validate:"gt=0,lte=1"`
	ExemplifyStubs    bool    `json:"exemplifyStubs" mapstructure:"exemplifyStubs"`
}

// SearchConfig holds hybrid scoring tunables
type SearchConfig struct {
	KeywordBase float64 `json:"keywordBase" mapstructure:"keywordBase" validate:"gte=0,lte=1"`
	HybridBoost float64 `json:"hybridBoost" mapstructure:"hybridBoost" validate:"gte=0,lte=1"`
}

// BoxerConfig controls document segmentation
type BoxerConfig struct {
	MaxTokens    int    `json:"maxTokens" mapstructure:"maxTokens" validate:"gt=0"`
	TokenCounter string `json:"tokenCounter" mapstructure:"tokenCounter" validate:"omitempty,oneof=whitespace cl100k_base o200k_base"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Database: DatabaseConfig{
				Resonance: "data/resonance.db",
				Ledger:    "data/loci.db",
			},
			Sources: SourcesConfig{
				Experience: []ExperienceSource{},
				Persona: PersonaConfig{
					Lexicon: "persona/lexicon.json",
					CDA:     "persona/cda.json",
				},
			},
		},
		LLM: LLMConfig{
			ActiveProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					BaseURL: "http://localhost:11434",
					Model:   "nomic-embed-text",
				},
				"openai": {
					Model:     "text-embedding-3-small",
					ChatModel: "gpt-4o-mini",
				},
			},
		},
		Embedding: EmbeddingConfig{
			Dimensions: 384,
			Daemon: DaemonConfig{
				Bind:           "localhost",
				Port:           8756,
				ProbeTimeoutMs: 200,
			},
		},
		Weave: WeaveConfig{
			LouvainThreshold:  50,
			SemanticThreshold: 0.85,
			ExemplifyStubs:    true,
		},
		Search: SearchConfig{
			KeywordBase: 0.5,
			HybridBoost: 0.2,
		},
		Boxer: BoxerConfig{
			MaxTokens:    400,
			TokenCounter: "whitespace",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads polyvis.settings.json from the project root.
// A missing file yields the default configuration.
func LoadConfig(projectRoot string) (*Config, error) {
	// API keys commonly live in .env beside the settings file.
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("polyvis.settings")
	v.SetConfigType("json")
	v.AddConfigPath(projectRoot)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(errors.ConfigInvalid, "failed to read settings file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid, "failed to parse settings file", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid, "settings failed validation", err)
	}

	return &cfg, nil
}

// setDefaults seeds viper so a partial settings file still yields
// a complete configuration.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("paths.database.resonance", def.Paths.Database.Resonance)
	v.SetDefault("paths.database.ledger", def.Paths.Database.Ledger)
	v.SetDefault("paths.sources.persona.lexicon", def.Paths.Sources.Persona.Lexicon)
	v.SetDefault("paths.sources.persona.cda", def.Paths.Sources.Persona.CDA)
	v.SetDefault("llm.active_provider", def.LLM.ActiveProvider)
	v.SetDefault("embedding.dimensions", def.Embedding.Dimensions)
	v.SetDefault("embedding.daemon.bind", def.Embedding.Daemon.Bind)
	v.SetDefault("embedding.daemon.port", def.Embedding.Daemon.Port)
	v.SetDefault("embedding.daemon.probeTimeoutMs", def.Embedding.Daemon.ProbeTimeoutMs)
	v.SetDefault("weave.louvainThreshold", def.Weave.LouvainThreshold)
	v.SetDefault("weave.semanticThreshold", def.Weave.SemanticThreshold)
	v.SetDefault("weave.exemplifyStubs", def.Weave.ExemplifyStubs)
	v.SetDefault("search.keywordBase", def.Search.KeywordBase)
	v.SetDefault("search.hybridBoost", def.Search.HybridBoost)
	v.SetDefault("boxer.maxTokens", def.Boxer.MaxTokens)
	v.SetDefault("boxer.tokenCounter", def.Boxer.TokenCounter)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
}

// applyEnvOverrides fills provider API keys from the environment when
// the settings file leaves them empty.
func applyEnvOverrides(cfg *Config) {
	if p, ok := cfg.LLM.Providers["openai"]; ok && p.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			p.APIKey = key
			cfg.LLM.Providers["openai"] = p
		}
	}
}

// Anchored returns a copy with every relative path resolved against
// root, so the configuration can be used from any working directory.
// Absolute settings values are kept as-is.
func (c *Config) Anchored(root string) *Config {
	out := *c
	out.Paths.Database.Resonance = resolveAgainst(root, c.Paths.Database.Resonance)
	out.Paths.Database.Ledger = resolveAgainst(root, c.Paths.Database.Ledger)
	out.Paths.Sources.Persona.Lexicon = resolveAgainst(root, c.Paths.Sources.Persona.Lexicon)
	out.Paths.Sources.Persona.CDA = resolveAgainst(root, c.Paths.Sources.Persona.CDA)
	out.Paths.Sources.Experience = make([]ExperienceSource, len(c.Paths.Sources.Experience))
	for i, src := range c.Paths.Sources.Experience {
		src.Path = resolveAgainst(root, src.Path)
		out.Paths.Sources.Experience[i] = src
	}
	return &out
}

// ResonancePath resolves the graph database location against the
// project root. Absolute settings values are kept as-is.
func (c *Config) ResonancePath(root string) string {
	return resolveAgainst(root, c.Paths.Database.Resonance)
}

// LedgerPath resolves the locus ledger location against the project root.
func (c *Config) LedgerPath(root string) string {
	return resolveAgainst(root, c.Paths.Database.Ledger)
}

func resolveAgainst(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Save writes the configuration to polyvis.settings.json at the project root
func (c *Config) Save(projectRoot string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectRoot, SettingsFileName), data, 0o644)
}

var validate = validator.New()

// Validate checks structural constraints plus provider cross-references
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.LLM.ActiveProvider != "" {
		if _, ok := c.LLM.Providers[c.LLM.ActiveProvider]; !ok {
			return fmt.Errorf("active_provider %q has no entry under llm.providers", c.LLM.ActiveProvider)
		}
	}

	return nil
}

// ActiveProvider returns the configured provider entry, or false when
// none is usable.
func (c *Config) ActiveProvider() (string, ProviderConfig, bool) {
	name := c.LLM.ActiveProvider
	if name == "" {
		return "", ProviderConfig{}, false
	}
	p, ok := c.LLM.Providers[name]
	return name, p, ok
}
