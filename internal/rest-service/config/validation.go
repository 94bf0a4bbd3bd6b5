package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateRemoteSection(&cfg.Remote)
}

// validateRemoteSection requires the section of the selected backend.
func validateRemoteSection(cfg *RemoteConfig) error {
	var section map[string]any
	switch cfg.Type {
	case RemoteMemory:
		return nil
	case RemoteFileShare:
		section = cfg.FileShare
	case RemoteAzure:
		section = cfg.Azure
	case RemoteS3:
		section = cfg.S3
	}
	if len(section) == 0 {
		return fmt.Errorf("remote.%s: section is required for remote type %q", cfg.Type, cfg.Type)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		if e.Field() == "SigningKey" {
			// never echo the key
			return fmt.Errorf("%s: validation failed on '%s' tag", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
