package config

import (
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	DefaultDaemonConfigPath = "/etc/regis/regisd.toml"
	DefaultConsoleSocket    = "/run/regis/console.sock"
)

// ClientDir is the per-user regis data directory.
func ClientDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "regis"), nil
}

func DefaultClientConfigPath() (string, error) {
	dir, err := ClientDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
