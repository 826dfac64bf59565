package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by sos-server and sos-ctl.
type Config struct {
	// ServerAddress is the gRPC address of the coordinator daemon.
	ServerAddress string `yaml:"server_addr"`
	// HTTPAddress is where the status page, SSE channel and metrics are served.
	// The value "-" disables the HTTP server.
	HTTPAddress string `yaml:"http_addr"`
	// Timeout is the duration for client RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of log entries.
	LogLevel string `yaml:"log_level"`
	// Device describes the serial link to the button hardware.
	Device Device `yaml:"device"`
	// Alert holds the phrases and escalation parameters of the alert lifecycle.
	Alert Alert `yaml:"alert"`
	// Advisory configures the text-completion service.
	Advisory Advisory `yaml:"advisory"`
}

// Device describes the serial link.
type Device struct {
	// Port is the serial device path, e.g. /dev/ttyACM0 or COM3. Empty means no device.
	Port string `yaml:"port"`
	// BaudRate is the line speed.
	BaudRate int `yaml:"baud_rate"`
	// SettleDelay is how long to wait after opening the port before reading;
	// most boards reset when the port opens. A negative value disables the pause.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Alert holds the alert lifecycle parameters.
type Alert struct {
	TriggerPhrase     string        `yaml:"trigger_phrase"`
	CancelPhrase      string        `yaml:"cancel_phrase"`
	EscalationWindow  time.Duration `yaml:"escalation_window"`
	EscalationCommand string        `yaml:"escalation_command"`
	// ResolveCommand is sent to the device when the user cancels. Empty disables it.
	ResolveCommand string `yaml:"resolve_command"`
}

// Advisory configures the advisory text generator.
type Advisory struct {
	URL          string        `yaml:"url"`
	Model        string        `yaml:"model"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
	Fallback     string        `yaml:"fallback"`
	// APIKey is resolved from the APIKeyEnv variable and never written back to YAML.
	APIKey string `yaml:"-"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "sos-beacon-settings.yaml"

	// DefaultEnvFilename is the optional dotenv file holding secrets.
	DefaultEnvFilename = ".env"

	// DefaultTimeout is the default duration for client RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultHTTPAddress is the default listen address of the status page.
	DefaultHTTPAddress = ":5000"

	// DisabledAddress turns an optional listener off.
	DisabledAddress = "-"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultBaudRate matches the firmware of the button board.
	DefaultBaudRate = 9600

	// DefaultSettleDelay is the pause after opening the serial port.
	DefaultSettleDelay = 2 * time.Second

	// DefaultTriggerPhrase is the line fragment the board prints when the button is pressed.
	DefaultTriggerPhrase = "Help! Help!"

	// DefaultCancelPhrase is the line fragment the board prints when the user cancels.
	DefaultCancelPhrase = "alert message off."

	// DefaultEscalationWindow is how long an alert may stay open before it escalates.
	DefaultEscalationWindow = 30 * time.Second

	// DefaultEscalationCommand makes the board beep six times.
	DefaultEscalationCommand = "BEEP_6_TIMES"

	// DefaultAdvisoryURL is the chat-completions endpoint.
	DefaultAdvisoryURL = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultAdvisoryModel is the completion model.
	DefaultAdvisoryModel = "meta-llama/llama-3.3-8b-instruct:free"

	// DefaultAPIKeyEnv is the environment variable holding the advisory API key.
	DefaultAPIKeyEnv = "ADVISORY_API_KEY"

	// DefaultAdvisoryTimeout bounds a single advisory call.
	DefaultAdvisoryTimeout = 20 * time.Second

	// DefaultFallback replaces the advisory text when the service fails.
	DefaultFallback = "Advisory service temporarily unavailable."

	// DefaultSystemPrompt frames the completion model.
	DefaultSystemPrompt = "You are a rescue operations assistant. You analyze emergency alerts raised " +
		"by a wearable panic button and give concise, factual reports and recommended actions to " +
		"security personnel. Keep answers short and addressed to responders, never to the victim. " +
		"Use any information in the alert to help locate the person who raised it."
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errPhrasesOverlap is returned when a line could match both phrases.
	errPhrasesOverlap = errors.New("trigger and cancel phrases must not contain each other")
	// errBadBaudRate is returned for non-positive baud rates.
	errBadBaudRate = errors.New("baud rate must be positive")
)

// Load reads configuration from the provided path, resolves secrets from the
// environment (optionally seeded from a .env file) and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := LoadEnv(DefaultEnvFilename); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	cfg.Advisory.APIKey = strings.TrimSpace(os.Getenv(cfg.Advisory.APIKeyEnv))

	return &cfg, nil
}

// LoadEnv seeds the process environment from dotenv files.
// Missing files are skipped and variables already set win.
func LoadEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	return nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
//
//nolint:cyclop // A flat list of defaults reads better than helpers.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.HTTPAddress == "" {
		settings.HTTPAddress = DefaultHTTPAddress
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if err := validateDevice(&settings.Device); err != nil {
		return err
	}

	if err := validateAlert(&settings.Alert); err != nil {
		return err
	}

	return validateAdvisory(&settings.Advisory)
}

func validateDevice(d *Device) error {
	if d.BaudRate == 0 {
		d.BaudRate = DefaultBaudRate
	}

	if d.BaudRate < 0 {
		return errBadBaudRate
	}

	// Negative values are kept so that "no pause" survives a save.
	if d.SettleDelay == 0 {
		d.SettleDelay = DefaultSettleDelay
	}

	return nil
}

func validateAlert(a *Alert) error {
	if a.TriggerPhrase == "" {
		a.TriggerPhrase = DefaultTriggerPhrase
	}

	if a.CancelPhrase == "" {
		a.CancelPhrase = DefaultCancelPhrase
	}

	if strings.Contains(a.TriggerPhrase, a.CancelPhrase) || strings.Contains(a.CancelPhrase, a.TriggerPhrase) {
		return errPhrasesOverlap
	}

	if a.EscalationWindow <= 0 {
		a.EscalationWindow = DefaultEscalationWindow
	}

	if a.EscalationCommand == "" {
		a.EscalationCommand = DefaultEscalationCommand
	}

	return nil
}

func validateAdvisory(a *Advisory) error {
	if a.URL == "" {
		a.URL = DefaultAdvisoryURL
	}

	if _, err := url.ParseRequestURI(a.URL); err != nil {
		return fmt.Errorf("invalid advisory URL: %w", err)
	}

	if a.Model == "" {
		a.Model = DefaultAdvisoryModel
	}

	if a.APIKeyEnv == "" {
		a.APIKeyEnv = DefaultAPIKeyEnv
	}

	if a.Timeout <= 0 {
		a.Timeout = DefaultAdvisoryTimeout
	}

	if a.SystemPrompt == "" {
		a.SystemPrompt = DefaultSystemPrompt
	}

	if a.Fallback == "" {
		a.Fallback = DefaultFallback
	}

	return nil
}

// HTTPEnabled reports whether the HTTP listener should start.
func (c *Config) HTTPEnabled() bool {
	return c.HTTPAddress != "" && c.HTTPAddress != DisabledAddress
}
