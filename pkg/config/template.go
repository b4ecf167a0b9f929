package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// templateValues are written by Template in addition to the defaults, as
// placeholders for values every deployment sets.
var templateValues = map[Key]any{
	ChainEndpoint:  "http://127.0.0.1:8545",
	ChainID:        314159,
	ChainContract:  "0x0000000000000000000000000000000000000000",
	ContentDataDir: "data",
}

// Template renders the defaults as a TOML configuration file. Durations are
// written in their string form so the file reads back through viper.
func Template() ([]byte, error) {
	root := map[string]any{}
	for _, values := range []map[Key]any{defaultValues, templateValues} {
		for k, v := range values {
			if d, ok := v.(time.Duration); ok {
				v = d.String()
			}
			if err := setPath(root, string(k), v); err != nil {
				return nil, err
			}
		}
	}
	return toml.Marshal(root)
}

func setPath(m map[string]any, path string, v any) error {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p]
		if !ok {
			child := map[string]any{}
			m[p] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key %s conflicts with value at %s", path, p)
		}
		m = child
	}
	m[parts[len(parts)-1]] = v
	return nil
}
