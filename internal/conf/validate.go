package conf

import (
	"github.com/obralens/obralens/internal/errors"
)

// Validate checks that required settings are present and coherent.
func (s *Settings) Validate() error {
	if s.Security.JWTSecret == "" {
		return errors.Newf("security.jwtsecret must be set (use the OBRALENS_SECURITY_JWTSECRET environment variable or config.yaml)").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Security.BcryptCost < 4 || s.Security.BcryptCost > 31 {
		return errors.Newf("security.bcryptcost %d outside bcrypt's supported range", s.Security.BcryptCost).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Storage.DataFile == "" {
		return errors.Newf("storage.datafile must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Detection.ServiceURL == "" {
		return errors.Newf("detection.serviceurl must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.Detection.Workers < 1 {
		s.Detection.Workers = 1
	}
	return nil
}
