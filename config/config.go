package config

import (
	"os"
	"strings"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/ardanlabs/conf"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EnvPrefix namespaces the tunables, e.g. WHALE_MONITOR_ALERT_THRESHOLD.
const EnvPrefix = "WHALE_MONITOR"

// Contract variables are read without the prefix.
const (
	EnvWsUrl          = "WS_URL"
	EnvRpcUrl         = "RPC_URL"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Tunables are the optional settings with defaults.
type Tunables struct {
	AlertThreshold      float64       `conf:"default:0.1"`
	ProgramID           string        `conf:"default:11111111111111111111111111111111"`
	Commitment          string        `conf:"default:processed"`
	LookupCommitment    string        `conf:"default:confirmed"`
	QueueCapacity       int           `conf:"default:100"`
	MaxConcurrency      int           `conf:"default:64"`
	LookupTimeout       time.Duration `conf:"default:10s"`
	LookupAttempts      int           `conf:"default:3"`
	LookupRetryDelay    time.Duration `conf:"default:500ms"`
	DedupTtl            time.Duration `conf:"default:2m"`
	ExplorerUrl         string        `conf:"default:https://solscan.io/tx/"`
	TelegramApiUrl      string        `conf:"default:https://api.telegram.org"`
	TelegramProxy       string        `conf:"noprint"`
	TelegramTimeout     time.Duration `conf:"default:10s"`
	DeliveryPolicy      string        `conf:"default:best-effort"`
	DeliveryAttempts    int           `conf:"default:3"`
	DeliveryRetryDelay  time.Duration `conf:"default:1s"`
	HealthCheckInterval time.Duration `conf:"default:30s"`
	MetricsPort         int           `conf:"default:9999"`
	MetricsNamespace    string        `conf:"default:whale_monitor"`
	ShutdownGrace       time.Duration `conf:"default:10s"`
	LogLevel            string        `conf:"default:info"`
}

// Config is the process configuration. It is not modified after Load.
type Config struct {
	WsUrl          string
	RpcUrl         string
	TelegramToken  string
	TelegramChatID string

	Tunables
}

var deliveryPolicies = map[string]struct{}{
	"best-effort": {},
	"retry":       {},
}

var commitments = map[string]struct{}{
	"processed": {},
	"confirmed": {},
	"finalized": {},
}

// Load reads an optional .env file, the contract variables and the prefixed tunables, then validates the result.
//
// Parameters:
// - args: command line arguments, usually os.Args[1:].
//
// Returns:
// - *Config: the loaded configuration.
// - error: conf.ErrHelpWanted for --help, or an error wrapping ErrInvalidConfig.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	cfg := Config{
		WsUrl:          strings.TrimSpace(os.Getenv(EnvWsUrl)),
		RpcUrl:         strings.TrimSpace(os.Getenv(EnvRpcUrl)),
		TelegramToken:  strings.TrimSpace(os.Getenv(EnvTelegramToken)),
		TelegramChatID: strings.TrimSpace(os.Getenv(EnvTelegramChatID)),
	}

	if err := conf.Parse(args, EnvPrefix, &cfg.Tunables); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return nil, err
		}
		return nil, errors.Wrapf(commonerrors.ErrInvalidConfig, "parsing tunables: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage returns the help text for the tunables.
func Usage() (string, error) {
	var t Tunables
	return conf.Usage(EnvPrefix, &t)
}

// Validate checks required values and the ranges of the tunables.
func (c *Config) Validate() error {
	if c.WsUrl == "" {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "%s is required", EnvWsUrl)
	}
	if types.GetSubscriptionMode(c.WsUrl) != types.WebSocketMode {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "%s must be a ws:// or wss:// url", EnvWsUrl)
	}
	if c.RpcUrl == "" {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "%s is required", EnvRpcUrl)
	}
	if _, err := solana.PublicKeyFromBase58(c.ProgramID); err != nil {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "invalid program id %q: %v", c.ProgramID, err)
	}
	if _, ok := commitments[c.Commitment]; !ok {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "unknown commitment %q", c.Commitment)
	}
	// getTransaction does not accept processed
	if c.LookupCommitment != "confirmed" && c.LookupCommitment != "finalized" {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "lookup commitment must be confirmed or finalized, got %q", c.LookupCommitment)
	}
	if c.AlertThreshold < 0 {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "alert threshold must not be negative, got %v", c.AlertThreshold)
	}
	if c.QueueCapacity <= 0 {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.LookupAttempts <= 0 {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "lookup attempts must be positive, got %d", c.LookupAttempts)
	}
	if c.LookupRetryDelay < 0 || c.DeliveryRetryDelay < 0 {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "retry delays must not be negative, got %v and %v", c.LookupRetryDelay, c.DeliveryRetryDelay)
	}
	if _, ok := deliveryPolicies[c.DeliveryPolicy]; !ok {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "unknown delivery policy %q", c.DeliveryPolicy)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(commonerrors.ErrInvalidConfig, "invalid log level %q", c.LogLevel)
	}
	return nil
}

// NotifierEnabled reports whether both Telegram credentials are present.
func (c *Config) NotifierEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// ChainConfig returns the connection settings for the chain adapter.
func (c *Config) ChainConfig() types.ChainConfig {
	return types.ChainConfig{
		Name:             "solana",
		WsUrl:            c.WsUrl,
		RpcUrl:           c.RpcUrl,
		LookupCommitment: c.LookupCommitment,
	}
}

// String renders the tunables for the startup log. Credentials are left out.
func (c *Config) String() (string, error) {
	out, err := conf.String(&c.Tunables)
	if err != nil {
		return "", errors.Wrap(err, "generating config for output")
	}
	return out, nil
}
