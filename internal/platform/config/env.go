// Package config is the shared configuration layer for the meshmush
// daemons. Settings come from MESHMUSH_-prefixed environment variables
// first; each entry point layers command-line flags on top of whatever the
// environment provided.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from the environment using its env struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
