package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/uwb-tracker/internal/geometry"
)

// Config holds settings shared by the uwb binaries.
type Config struct {
	// MQTT configures the observation feed.
	MQTT MQTT `yaml:"mqtt"`
	// GRPCAddress is the gRPC listen address of the tracker and the target of clients.
	GRPCAddress string `yaml:"grpc_addr" validate:"required"`
	// HTTPAddress is the HTTP listen address. Empty disables the HTTP API.
	HTTPAddress string `yaml:"http_addr,omitempty"`
	// Roster configures where tags and anchors are read from.
	Roster Roster `yaml:"roster"`
	// Engine tunes the tracking engine.
	Engine Engine `yaml:"engine"`
	// Auth protects roster mutation and debug endpoints. Empty disables it.
	Auth Auth `yaml:"auth,omitempty"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// MQTT describes the broker connection.
type MQTT struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker" validate:"required,url"`
	// Topic is the subscription filter.
	Topic string `yaml:"topic"`
	// ClientID prefixes the generated client id.
	ClientID string `yaml:"client_id"`
	// QoS is the subscription quality of service.
	QoS byte `yaml:"qos" validate:"lte=2"`
	// Username and Password authenticate against the broker.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Roster selects the roster backend.
type Roster struct {
	// Backend is "file" or "sqlite".
	Backend string `yaml:"backend" validate:"oneof=file sqlite"`
	// TagsFile and AnchorsFile are used by the file backend.
	TagsFile    string `yaml:"tags_file"`
	AnchorsFile string `yaml:"anchors_file"`
	// SQLitePath is used by the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`
	// ReloadInterval is how often the roster is polled.
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// Engine tunes the tracking engine.
type Engine struct {
	// QueueSize is the inbox capacity.
	QueueSize int `yaml:"queue_size" validate:"gte=0"`
	// DebugLogSize is how many recent messages are kept for inspection.
	DebugLogSize int `yaml:"debug_log_size" validate:"gte=0"`
	// AnchorTTL marks silent anchors offline. Zero disables expiry.
	AnchorTTL time.Duration `yaml:"anchor_ttl" validate:"gte=0"`
	// Area is the box positions are clamped into.
	Area Area `yaml:"area"`
}

// Area is an axis-aligned rectangle in meters.
type Area struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x" validate:"gtfield=MinX"`
	MaxY float64 `yaml:"max_y" validate:"gtfield=MinY"`
}

// Auth holds operator credentials for the HTTP API.
type Auth struct {
	Username   string        `yaml:"username,omitempty" validate:"required_with=Password"`
	Password   string        `yaml:"password,omitempty" validate:"required_with=Username"`
	SessionTTL time.Duration `yaml:"session_ttl,omitempty"`
}

// Enabled reports whether credentials are configured.
func (a Auth) Enabled() bool {
	return a.Username != "" && a.Password != ""
}

const (
	// DefaultConfigFilename is the default filename for tracker settings.
	DefaultConfigFilename = "uwb-tracker.yaml"

	// DefaultTopic is the default MQTT subscription filter.
	DefaultTopic = "uwb/#"

	// DefaultClientID is the default MQTT client id prefix.
	DefaultClientID = "uwb-tracker"

	// DefaultGRPCAddress is the default gRPC address.
	DefaultGRPCAddress = "127.0.0.1:50051"

	// DefaultTagsFilename and DefaultAnchorsFilename are the file backend defaults.
	DefaultTagsFilename    = "workers.json"
	DefaultAnchorsFilename = "anchors.json"

	// DefaultSQLiteFilename is the sqlite backend default.
	DefaultSQLiteFilename = "uwb-tracker.db"

	// DefaultReloadInterval is how often the roster is polled by default.
	DefaultReloadInterval = 5 * time.Second

	// DefaultDebugLogSize is the default debug log capacity.
	DefaultDebugLogSize = 100

	// DefaultAreaSize is the default side of the clamp box in meters.
	DefaultAreaSize = 3.0

	// DefaultSessionTTL is the default HTTP session lifetime.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// BackendFile and BackendSQLite name the roster backends.
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")

	//nolint:gochecknoglobals // Validator caches struct metadata.
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load reads configuration from the provided path and validates it.
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

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path.
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

	// Credentials may be stored here.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.GRPCAddress == "" {
		cfg.GRPCAddress = DefaultGRPCAddress
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultTopic
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}

	if cfg.Roster.Backend == "" {
		cfg.Roster.Backend = BackendFile
	}

	if cfg.Roster.TagsFile == "" {
		cfg.Roster.TagsFile = DefaultTagsFilename
	}

	if cfg.Roster.AnchorsFile == "" {
		cfg.Roster.AnchorsFile = DefaultAnchorsFilename
	}

	if cfg.Roster.SQLitePath == "" {
		cfg.Roster.SQLitePath = DefaultSQLiteFilename
	}

	if cfg.Roster.ReloadInterval <= 0 {
		cfg.Roster.ReloadInterval = DefaultReloadInterval
	}

	if cfg.Engine.DebugLogSize == 0 {
		cfg.Engine.DebugLogSize = DefaultDebugLogSize
	}

	if cfg.Engine.Area == (Area{}) {
		cfg.Engine.Area = Area{MaxX: DefaultAreaSize, MaxY: DefaultAreaSize}
	}

	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = DefaultSessionTTL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
}

// Bounds returns the clamp box for the solver.
func (c *Config) Bounds() geometry.Bounds {
	a := c.Engine.Area

	return geometry.NewBounds(a.MinX, a.MinY, a.MaxX, a.MaxY)
}
