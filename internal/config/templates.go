package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "daemon":
		return daemonTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `port = 1026
cpu_warn = 70
cpu_err = 90
mem_warn = 70
mem_err = 90

[[hosts]]
name = "localhost"
addr = "127.0.0.1"
`

const daemonTemplate = `listen_addr = "0.0.0.0"
clients_port = 1026
max_clients = 6
console_socket = "/run/regis/console.sock"
admin_addr = "127.0.0.1:9126"
cors_origins = ["http://localhost:3000"]
history_size = 256
idle_timeout = "5m"
write_timeout = "15s"
log_level = "info"
`
