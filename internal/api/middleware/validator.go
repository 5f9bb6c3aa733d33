package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"workflow/backend/internal/model"
)

// RegisterValidators adds the custom binding tags to gin's validator engine.
// Call once at startup before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("weekday", validateWeekday); err != nil {
		return fmt.Errorf("register weekday: %w", err)
	}
	return nil
}

// weekday: a full English day name, any case.
func validateWeekday(fl validator.FieldLevel) bool {
	return model.WeekdayIndex(fl.Field().String()) >= 0
}
