package schema

import (
	"encoding/json"
	"fmt"
)

type ConsoleKind string

const (
	ConsoleShutdown     ConsoleKind = "Shutdown"
	ConsolePoll         ConsoleKind = "Poll"
	ConsoleConfigReload ConsoleKind = "ConfigReload"
	ConsoleConfigGet    ConsoleKind = "ConfigGet"
)

// ConsoleRequest is sent by a local operator over the daemon's console socket.
// The daemon acknowledges each request with a JSON null document, except
// ConfigGet, which is answered with the daemon configuration.
type ConsoleRequest struct {
	Kind ConsoleKind
}

func (c ConsoleRequest) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ConsoleShutdown, ConsolePoll:
		return marshalUnit(string(c.Kind))
	case ConsoleConfigReload:
		return marshalTagged("Config", "Reload")
	case ConsoleConfigGet:
		return marshalTagged("Config", "Get")
	default:
		return nil, fmt.Errorf("%w: console %q", ErrUnknownVariant, c.Kind)
	}
}

func (c *ConsoleRequest) UnmarshalJSON(data []byte) error {
	tag, body, err := decodeTagged(data)
	if err != nil {
		return err
	}
	switch tag {
	case string(ConsoleShutdown), string(ConsolePoll):
		if err := rejectBody(tag, body); err != nil {
			return err
		}
		*c = ConsoleRequest{Kind: ConsoleKind(tag)}
		return nil
	case "Config":
		if err := requireBody(tag, body); err != nil {
			return err
		}
		var sub string
		if err := json.Unmarshal(body, &sub); err != nil {
			return fmt.Errorf("%w: config request %s", ErrUnknownVariant, body)
		}
		switch sub {
		case "Reload":
			*c = ConsoleRequest{Kind: ConsoleConfigReload}
		case "Get":
			*c = ConsoleRequest{Kind: ConsoleConfigGet}
		default:
			return fmt.Errorf("%w: config request %s", ErrUnknownVariant, body)
		}
		return nil
	default:
		return fmt.Errorf("%w: console %q", ErrUnknownVariant, tag)
	}
}
