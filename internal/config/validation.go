package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration with struct tags plus the rules that
// cannot be expressed in tags (name uniqueness, path safety).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	names := make(map[string]struct{}, len(cfg.Mirrors))
	for i, mirror := range cfg.Mirrors {
		if !validMirrorName(mirror.Name) {
			return fmt.Errorf("mirrors[%d]: invalid mirror name %q", i, mirror.Name)
		}

		if _, exists := names[mirror.Name]; exists {
			return fmt.Errorf("mirrors[%d]: duplicate mirror name %q", i, mirror.Name)
		}
		names[mirror.Name] = struct{}{}
	}

	return nil
}

// validMirrorName rejects names that could escape the data or tmp directory
// when used as a path segment.
func validMirrorName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, "/\\")
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]

		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}

	return err
}
