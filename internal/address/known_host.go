package address

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// KnownHost names a daemon endpoint the user has connected to before.
type KnownHost struct {
	ID   uuid.UUID `json:"id" toml:"id"`
	Name string    `json:"name" toml:"name"`
	Addr string    `json:"addr" toml:"addr"`
}

func NewKnownHost(name string, addr Address) (KnownHost, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return KnownHost{}, fmt.Errorf("known host missing name")
	}
	if addr == nil {
		return KnownHost{}, fmt.Errorf("%w: known host %q missing address", ErrInvalidAddress, name)
	}
	return KnownHost{
		ID:   uuid.New(),
		Name: name,
		Addr: addr.String(),
	}, nil
}

// Address parses the stored address string.
func (h KnownHost) Address() (Address, error) {
	return Parse(h.Addr)
}

// Endpoint resolves the host against port.
func (h KnownHost) Endpoint(port uint16) (Endpoint, error) {
	addr, err := h.Address()
	if err != nil {
		return Endpoint{}, fmt.Errorf("known host %q: %w", h.Name, err)
	}
	return Endpoint{Addr: addr, Port: port}, nil
}

func (h KnownHost) String() string {
	return fmt.Sprintf("Host '%s' at IP '%s'", h.Name, h.Addr)
}
