package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del pipeline.
type Config struct {
	Pipeline  PipelineConfig   `yaml:"pipeline"`
	Providers []ProviderConfig `yaml:"providers"`
	Sources   SourcesConfig    `yaml:"sources"`
	Storage   StorageConfig    `yaml:"storage"`
	Log       LogConfig        `yaml:"log"`
}

// PipelineConfig controla el comportamiento del pipeline.
type PipelineConfig struct {
	IntervalMinutes int     `yaml:"interval_minutes"`
	EventBatch      int     `yaml:"event_batch"`      // eventos por etapa y por run
	SignalLimit     int     `yaml:"signal_limit"`     // señales máximas por run
	SignalThreshold float64 `yaml:"signal_threshold"` // % de |E[return]| para señal activa
	SignalCap       float64 `yaml:"signal_cap"`       // tope de |E[return]| por token, en %
}

// ProviderConfig describe un provider LLM OpenAI-compatible. La API key
// nunca va en el YAML: se resuelve desde la variable de entorno key_env.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	KeyEnv string `yaml:"key_env"`
	Model  string `yaml:"model"`
	RPM    int    `yaml:"rpm"` // requests por minuto
}

// SourcesConfig controla las fuentes de noticias.
type SourcesConfig struct {
	BinanceBaseURL string `yaml:"binance_base_url"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las API keys de los providers siempre vienen del entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default devuelve la configuración de producción sin archivo YAML.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

// ScanInterval devuelve el intervalo entre runs como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Pipeline.IntervalMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SCANNER_DB"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Pipeline.IntervalMinutes <= 0 {
		cfg.Pipeline.IntervalMinutes = 30
	}
	if cfg.Pipeline.EventBatch <= 0 {
		cfg.Pipeline.EventBatch = 100
	}
	if cfg.Pipeline.SignalLimit <= 0 {
		cfg.Pipeline.SignalLimit = 50
	}
	if cfg.Pipeline.SignalThreshold <= 0 {
		cfg.Pipeline.SignalThreshold = 3.0
	}
	if cfg.Pipeline.SignalCap <= 0 {
		cfg.Pipeline.SignalCap = 15.0
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = defaultProviders()
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "cryptoscanner.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// defaultProviders es el pool de providers OpenAI-compatibles de free tier.
// Un provider sin su variable de entorno se descarta al construir el client.
func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:   "groq",
			URL:    "https://api.groq.com/openai/v1/chat/completions",
			KeyEnv: "GROQ_API_KEY",
			Model:  "llama-3.3-70b-versatile",
			RPM:    30,
		},
		{
			Name:   "cohere",
			URL:    "https://api.cohere.com/compatibility/v1/chat/completions",
			KeyEnv: "COHERE_API_KEY",
			Model:  "command-a-03-2025",
			RPM:    20,
		},
		{
			Name:   "cerebras",
			URL:    "https://api.cerebras.ai/v1/chat/completions",
			KeyEnv: "CEREBRAS_API_KEY",
			Model:  "llama3.1-8b",
			RPM:    30,
		},
		{
			Name:   "sambanova",
			URL:    "https://api.sambanova.ai/v1/chat/completions",
			KeyEnv: "SAMBANOVA_API_KEY",
			Model:  "Meta-Llama-3.3-70B-Instruct",
			RPM:    30,
		},
		{
			Name:   "github",
			URL:    "https://models.inference.ai.azure.com/chat/completions",
			KeyEnv: "GITHUB_PAT",
			Model:  "Meta-Llama-3.3-70B-Instruct",
			RPM:    15,
		},
	}
}
