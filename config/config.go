package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "wristrelay"
	// DataDirEnv overrides the resolved application data directory.
	DataDirEnv = "WRISTRELAY_DATA_DIR"
	// DefaultListeningPort is the TCP port used in fixed port mode when none is set.
	DefaultListeningPort = 9797
	// DefaultRelayBaseURL is the storage endpoint the handheld forwards readings to.
	DefaultRelayBaseURL = "http://192.168.100.27/smartphone/guardar_datos.php"
	// PortModeAutomatic picks an available port at launch.
	PortModeAutomatic = "automatic"
	// PortModeFixed uses the configured listening port value.
	PortModeFixed = "fixed"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// Role identifies which side of the relay a process plays.
type Role string

const (
	RoleWearable Role = "wearable"
	RoleHandheld Role = "handheld"
)

// Peer returns the role of the counterpart device.
func (r Role) Peer() Role {
	if r == RoleWearable {
		return RoleHandheld
	}
	return RoleWearable
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleWearable || r == RoleHandheld
}

// DeviceConfig contains persistent local-device settings.
type DeviceConfig struct {
	DeviceID      string `json:"device_id"`
	DeviceName    string `json:"device_name"`
	Role          Role   `json:"role"`
	PortMode      string `json:"port_mode"`
	ListeningPort int    `json:"listening_port"`
	RelayBaseURL  string `json:"relay_base_url,omitempty"`
	LogLevel      string `json:"log_level"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If WRISTRELAY_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// RoleDir returns the role-specific directory below a data directory, so a
// wearable and a handheld can run side by side on one host.
func RoleDir(dataDir string, role Role) string {
	return filepath.Join(dataDir, string(role))
}

// ConfigPath returns the full path to config.json for a role directory.
func ConfigPath(roleDir string) string {
	return filepath.Join(roleDir, configFileName)
}

// Load reads config.json from disk. Comments and trailing commas are tolerated.
func Load(path string) (*DeviceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg DeviceConfig
	if err := json.Unmarshal(jsonc.ToJSON(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *DeviceConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the role directory and its config exist, then returns both.
func LoadOrCreate(role Role) (*DeviceConfig, string, error) {
	if !role.Valid() {
		return nil, "", fmt.Errorf("unknown role %q", role)
	}

	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	return LoadOrCreateIn(RoleDir(dataDir, role), role)
}

// LoadOrCreateAt is LoadOrCreate rooted at dataDir. An empty dataDir resolves
// the default location.
func LoadOrCreateAt(dataDir string, role Role) (*DeviceConfig, string, error) {
	if dataDir == "" {
		return LoadOrCreate(role)
	}
	if !role.Valid() {
		return nil, "", fmt.Errorf("unknown role %q", role)
	}
	return LoadOrCreateIn(RoleDir(dataDir, role), role)
}

// LoadOrCreateIn is LoadOrCreate with an explicit role directory.
func LoadOrCreateIn(roleDir string, role Role) (*DeviceConfig, string, error) {
	if err := os.MkdirAll(roleDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create directory %q: %w", roleDir, err)
	}

	cfgPath := ConfigPath(roleDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig(role)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
		return cfg, cfgPath, nil
	}

	if cfg.Role != "" && cfg.Role != role {
		return nil, "", fmt.Errorf("config %q belongs to role %q, not %q", cfgPath, cfg.Role, role)
	}

	if normalizeDefaults(cfg, role) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

func defaultDeviceName(role Role) string {
	suffix := "Watch"
	if role == RoleHandheld {
		suffix = "Phone"
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + " " + suffix
	}
	return "Wristrelay " + suffix
}

func defaultConfig(role Role) *DeviceConfig {
	cfg := &DeviceConfig{
		DeviceID:      uuid.NewString(),
		DeviceName:    defaultDeviceName(role),
		Role:          role,
		PortMode:      PortModeAutomatic,
		ListeningPort: 0,
		LogLevel:      "info",
	}
	if role == RoleHandheld {
		cfg.RelayBaseURL = DefaultRelayBaseURL
	}
	return cfg
}

func normalizeDefaults(cfg *DeviceConfig, role Role) bool {
	updated := false

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		updated = true
	}
	if strings.TrimSpace(cfg.DeviceName) == "" {
		cfg.DeviceName = defaultDeviceName(role)
		updated = true
	}
	if cfg.Role == "" {
		cfg.Role = role
		updated = true
	}

	mode := normalizePortMode(cfg.PortMode)
	if mode == "" {
		if cfg.ListeningPort > 0 {
			mode = PortModeFixed
		} else {
			mode = PortModeAutomatic
		}
	}
	if cfg.PortMode != mode {
		cfg.PortMode = mode
		updated = true
	}
	if cfg.PortMode == PortModeFixed && cfg.ListeningPort == 0 {
		cfg.ListeningPort = DefaultListeningPort
		updated = true
	}
	if cfg.PortMode == PortModeAutomatic && cfg.ListeningPort < 0 {
		cfg.ListeningPort = 0
		updated = true
	}

	if role == RoleHandheld && cfg.RelayBaseURL == "" {
		cfg.RelayBaseURL = DefaultRelayBaseURL
		updated = true
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		updated = true
	}

	return updated
}

func normalizePortMode(mode string) string {
	switch mode {
	case PortModeAutomatic:
		return PortModeAutomatic
	case PortModeFixed:
		return PortModeFixed
	default:
		return ""
	}
}

// Overrides holds per-run settings from the command line. Zero values keep
// the stored setting.
type Overrides struct {
	DeviceName    string
	ListeningPort int
	RelayBaseURL  string
	LogLevel      string
}

// Apply layers o over c without persisting the result.
func (c *DeviceConfig) Apply(o Overrides) {
	if name := strings.TrimSpace(o.DeviceName); name != "" {
		c.DeviceName = name
	}
	if o.ListeningPort > 0 {
		c.PortMode = PortModeFixed
		c.ListeningPort = o.ListeningPort
	}
	if o.RelayBaseURL != "" {
		c.RelayBaseURL = o.RelayBaseURL
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// ListenAddress returns the TCP listen address implied by the port settings.
func (c *DeviceConfig) ListenAddress() string {
	if c.PortMode == PortModeFixed && c.ListeningPort > 0 {
		return fmt.Sprintf(":%d", c.ListeningPort)
	}
	return ":0"
}
