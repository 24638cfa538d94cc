package middleware

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	pkgvalidator "github.com/jwalitptl/queue-api/pkg/validator"
)

var registerOnce sync.Once

// RegisterValidators installs the custom tags on gin's binding engine so
// ShouldBindJSON applies them.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Warn().Msg("binding engine is not go-playground validator, custom tags not registered")
			return
		}
		if err := pkgvalidator.Register(v); err != nil {
			log.Error().Err(err).Msg("failed to register custom validators")
		}
	})
}
