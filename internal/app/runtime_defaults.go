package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charlesng35/hrconsole/pkg/crypto"
)

// Keys of secrets ApplyRuntimeDefaults may generate.
const (
	SecretJWT               = "auth.jwt.secret"
	SecretBootstrapPassword = "auth.bootstrap.password"
)

// Generated lists the configuration keys whose values were generated at startup.
type Generated []string

func (g Generated) Has(key string) bool {
	return slices.Contains(g, key)
}

type runtimeSecret struct {
	key    string
	bytes  int
	target func(*Config) *string
	wanted func(*Config) bool
}

var runtimeSecrets = []runtimeSecret{
	{
		key:    SecretJWT,
		bytes:  48,
		target: func(c *Config) *string { return &c.Auth.JWT.Secret },
		wanted: func(*Config) bool { return true },
	},
	{
		key:    SecretBootstrapPassword,
		bytes:  12,
		target: func(c *Config) *string { return &c.Auth.Bootstrap.Password },
		wanted: func(c *Config) bool { return strings.TrimSpace(c.Auth.Bootstrap.Username) != "" },
	},
}

// ApplyRuntimeDefaults fills blank secrets with random values. A generated JWT secret does not
// survive a restart, so issued tokens stop verifying. The bootstrap password is only generated
// when a bootstrap username is configured.
func ApplyRuntimeDefaults(cfg *Config) (Generated, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var generated Generated
	for _, secret := range runtimeSecrets {
		field := secret.target(cfg)
		if strings.TrimSpace(*field) != "" || !secret.wanted(cfg) {
			continue
		}
		value, err := crypto.GenerateToken(secret.bytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", secret.key, err)
		}
		*field = value
		generated = append(generated, secret.key)
	}
	return generated, nil
}
