package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/regis/internal/address"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrHostNotFound  = errors.New("config: known host not found")
	ErrDuplicateHost = errors.New("config: duplicate known host name")
)

// ClientConfig is the regis client's per-user configuration. Thresholds are
// utilization percentages used to flag readings. The client only reads it;
// known hosts are maintained by editing the file.
type ClientConfig struct {
	Port    uint16              `toml:"port"`
	CPUWarn uint8               `toml:"cpu_warn"`
	CPUErr  uint8               `toml:"cpu_err"`
	MemWarn uint8               `toml:"mem_warn"`
	MemErr  uint8               `toml:"mem_err"`
	Hosts   []address.KnownHost `toml:"hosts"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Port:    address.ClientsPort,
		CPUWarn: 70,
		CPUErr:  90,
		MemWarn: 70,
		MemErr:  90,
		Hosts:   []address.KnownHost{},
	}
}

// LoadClientConfig reads path over the defaults. Hosts stored without an id
// get a fresh one.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	for i := range cfg.Hosts {
		cfg.Hosts[i].Name = strings.TrimSpace(cfg.Hosts[i].Name)
		if cfg.Hosts[i].ID == uuid.Nil {
			cfg.Hosts[i].ID = uuid.New()
		}
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// LoadClientConfigOrDefault treats a missing file as an empty configuration.
func LoadClientConfigOrDefault(path string) (ClientConfig, error) {
	cfg, err := LoadClientConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultClientConfig(), nil
	}
	return cfg, err
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if cfg.Port == 0 {
		return fmt.Errorf("client config port must be non-zero")
	}
	if err := validateThresholds("cpu", cfg.CPUWarn, cfg.CPUErr); err != nil {
		return err
	}
	if err := validateThresholds("mem", cfg.MemWarn, cfg.MemErr); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cfg.Hosts))
	for i, host := range cfg.Hosts {
		if err := ValidateHostEntry(host); err != nil {
			return fmt.Errorf("hosts[%d] invalid: %w", i, err)
		}
		key := strings.ToLower(host.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("hosts[%d] %w: %q", i, ErrDuplicateHost, host.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func ValidateHostEntry(host address.KnownHost) error {
	if strings.TrimSpace(host.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := host.Address(); err != nil {
		return err
	}
	return nil
}

func validateThresholds(kind string, warn, errLevel uint8) error {
	if warn > 100 || errLevel > 100 {
		return fmt.Errorf("%s thresholds must be percentages: warn=%d err=%d", kind, warn, errLevel)
	}
	if warn > errLevel {
		return fmt.Errorf("%s warn threshold %d above err threshold %d", kind, warn, errLevel)
	}
	return nil
}

// FindHost matches key against host names (case-insensitive) and then stored
// addresses.
func (c ClientConfig) FindHost(key string) (address.KnownHost, error) {
	key = strings.TrimSpace(key)
	for _, host := range c.Hosts {
		if strings.EqualFold(host.Name, key) {
			return host, nil
		}
	}
	if addr, err := address.Parse(key); err == nil {
		for _, host := range c.Hosts {
			if stored, err := host.Address(); err == nil && stored.String() == addr.String() {
				return host, nil
			}
		}
	}
	return address.KnownHost{}, fmt.Errorf("%w: %q", ErrHostNotFound, key)
}

// Resolve turns a --host value into an endpoint: a known host name, or an
// address literal with an optional port.
func (c ClientConfig) Resolve(key string) (address.Endpoint, error) {
	if host, err := c.FindHost(key); err == nil {
		return host.Endpoint(c.Port)
	}
	ep, err := address.ParseEndpoint(key, c.Port)
	if err != nil {
		return address.Endpoint{}, fmt.Errorf("%w: %q is neither a known host nor an address", ErrHostNotFound, key)
	}
	return ep, nil
}
