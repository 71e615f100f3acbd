package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	switch cfg.Device.Store.Type {
	case "file":
		path, _ := cfg.Device.Store.File["path"].(string)
		if path == "" {
			return fmt.Errorf("device.store.file: path is required")
		}
	case "badger":
		if _, err := decodeBadgerOptions(cfg.Device.Store.Badger); err != nil {
			return fmt.Errorf("device.store.badger: %w", err)
		}
	}
	return nil
}

// formatValidationError reports the first validation failure.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
