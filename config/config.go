package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Safety  SafetyConfig  `yaml:"safety"`
	Spike   SpikeConfig   `yaml:"spike"`
	API     APIConfig     `yaml:"api"`
	Chain   ChainConfig   `yaml:"chain"`
	Model   ModelConfig   `yaml:"model"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// BotConfig controla el loop principal.
type BotConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	Asset           string  `yaml:"asset"`
	Symbol          string  `yaml:"symbol"`   // ticker del feed, p.ej. "BTC/USD"
	Strategy        string  `yaml:"strategy"` // "spike" | "model"
	MaxEntryPrice   float64 `yaml:"max_entry_price"`
}

// SafetyConfig son los límites del safety ledger.
type SafetyConfig struct {
	MaxTradeSize   float64 `yaml:"max_trade_size"`
	DailyLossLimit float64 `yaml:"daily_loss_limit"`
	MaxDailyLosses int     `yaml:"max_daily_losses"`
}

// SpikeConfig son los umbrales del detector de spikes.
type SpikeConfig struct {
	Threshold float64 `yaml:"threshold"` // $ mínimos de movimiento
	MinSpeed  float64 `yaml:"min_speed"` // $/min mínimos
}

// APIConfig contiene los base URLs y credenciales del CLOB.
type APIConfig struct {
	CLOBBase   string `yaml:"clob_base"`
	GammaBase  string `yaml:"gamma_base"`
	DataBase   string `yaml:"data_base"`
	FeedURL    string `yaml:"feed_url"`
	Key        string `yaml:"-"` // solo por env: POLY_API_KEY
	Secret     string `yaml:"-"`
	Passphrase string `yaml:"-"`
}

// ChainConfig es la configuración on-chain.
type ChainConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	PrivateKey string `yaml:"-"` // solo por env: WALLET_PRIVATE_KEY
	KnownProxy string `yaml:"known_proxy"`
}

// ModelConfig apunta al servicio de scoring de la policy "model".
type ModelConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"` // solo por env: MODEL_API_KEY
	Model   string `yaml:"model"`
}

// ServerConfig controla el HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig controla el audit recorder.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // vacío = sin auditoría
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las variables de entorno sobreescriben el YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Bot.IntervalSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno.
func applyEnvOverrides(cfg *Config) {
	if v := envInt("SCAN_INTERVAL"); v > 0 {
		cfg.Bot.IntervalSeconds = v
	}
	if v := envFloat("MAX_TRADE_SIZE"); v > 0 {
		cfg.Safety.MaxTradeSize = v
	}
	if v := envFloat("DAILY_LOSS_LIMIT"); v > 0 {
		cfg.Safety.DailyLossLimit = v
	}
	if v := envInt("MAX_DAILY_LOSSES"); v > 0 {
		cfg.Safety.MaxDailyLosses = v
	}
	if v := envFloat("SPIKE_THRESHOLD"); v > 0 {
		cfg.Spike.Threshold = v
	}
	if v := envFloat("MIN_SPIKE_SPEED"); v > 0 {
		cfg.Spike.MinSpeed = v
	}
	if v := envFloat("MAX_ENTRY_PRICE"); v > 0 {
		cfg.Bot.MaxEntryPrice = v
	}
	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("WALLET_PRIVATE_KEY"); v != "" {
		cfg.Chain.PrivateKey = v
	}
	if v := os.Getenv("KNOWN_PROXY_WALLET"); v != "" {
		cfg.Chain.KnownProxy = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("POLY_API_SECRET"); v != "" {
		cfg.API.Secret = v
	}
	if v := os.Getenv("POLY_API_PASSPHRASE"); v != "" {
		cfg.API.Passphrase = v
	}
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura valores sensatos para lo no configurado.
func setDefaults(cfg *Config) {
	if cfg.Bot.IntervalSeconds <= 0 {
		cfg.Bot.IntervalSeconds = 30
	}
	if cfg.Bot.Asset == "" {
		cfg.Bot.Asset = "BTC"
	}
	if cfg.Bot.Symbol == "" {
		cfg.Bot.Symbol = "BTC/USD"
	}
	if cfg.Bot.Strategy == "" {
		cfg.Bot.Strategy = "spike"
	}
	if cfg.Bot.MaxEntryPrice <= 0 {
		cfg.Bot.MaxEntryPrice = 0.45
	}
	if cfg.Safety.MaxTradeSize <= 0 {
		cfg.Safety.MaxTradeSize = 10
	}
	if cfg.Safety.DailyLossLimit <= 0 {
		cfg.Safety.DailyLossLimit = 50
	}
	if cfg.Safety.MaxDailyLosses <= 0 {
		cfg.Safety.MaxDailyLosses = 6
	}
	if cfg.Spike.Threshold <= 0 {
		cfg.Spike.Threshold = 30
	}
	if cfg.Spike.MinSpeed <= 0 {
		cfg.Spike.MinSpeed = 15
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = "gpt-4o-mini"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envFloat(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}
