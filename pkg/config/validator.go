package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validator enforces constraints on Config.
type Validator interface {
	Validate(*Config) error
}

// DefaultValidator applies structural checks.
type DefaultValidator struct {
	maxAliases int
}

func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{maxAliases: 64}
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate checks alias shape, spec shape, and budget bounds.
func (v *DefaultValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: config is nil")
	}
	if len(cfg.Models) > v.maxAliases {
		return fmt.Errorf("config: too many model aliases: %d > %d", len(cfg.Models), v.maxAliases)
	}
	for alias, spec := range cfg.Models {
		if !aliasPattern.MatchString(alias) {
			return fmt.Errorf("config: invalid model alias %q", alias)
		}
		if err := checkSpec(alias, spec); err != nil {
			return err
		}
	}
	if cfg.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.MaxSteps < 0 {
		return fmt.Errorf("config: max_steps must not be negative, got %d", cfg.MaxSteps)
	}
	return nil
}

func checkSpec(alias, spec string) error {
	provider, modelID, ok := strings.Cut(spec, ":")
	if !ok || strings.TrimSpace(provider) == "" || strings.TrimSpace(modelID) == "" {
		return fmt.Errorf("config: alias %s: malformed spec %q, want provider:modelId", alias, spec)
	}
	return nil
}
