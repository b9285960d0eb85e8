package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/fisioflow/scheduler-api/internal/model"
)

// clockTime accepts wall-clock strings in 24h "HH:MM" form.
func clockTime(fl validator.FieldLevel) bool {
	_, err := model.ParseClock(fl.Field().String())
	return err == nil
}

// RegisterCustom installs the domain validations on gin's binding engine.
// Call once at startup before serving requests.
func RegisterCustom() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("clocktime", clockTime)
}
