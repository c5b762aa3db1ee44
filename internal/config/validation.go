package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var errDisabledWithoutOptIn = errors.New("authz.mode=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")

// Validate checks struct tags, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if strings.EqualFold(cfg.Authz.Mode, "disabled") && !cfg.Authz.UnsafeAllowDisabled {
		return errDisabledWithoutOptIn
	}
	if cfg.Store.Driver == "postgres" && strings.TrimSpace(cfg.Database.URL) == "" {
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return errors.New("database: url or host+name required for the postgres store")
		}
	}
	return nil
}

func formatValidationError(err error) error {
	if errs, ok := errors.AsType[validator.ValidationErrors](err); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
