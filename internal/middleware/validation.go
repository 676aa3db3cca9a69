package middleware

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ValidationError is one field failure in a request body.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errorMessages = map[string]string{
	"required": "Field is required",
	"email":    "Invalid email format",
	"min":      "Value is too small",
	"max":      "Value is too large",
	"oneof":    "Value is not one of the allowed options",
	"future":   "Time must be in the future",
}

// Validation wires the binding validator: field names come from json tags,
// and a `future` tag is available for time fields. Binding errors collected
// on the context are rendered as a field-level error list.
func Validation() gin.HandlerFunc {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("future", func(fl validator.FieldLevel) bool {
			t, ok := fl.Field().Interface().(time.Time)
			return ok && t.After(time.Now())
		})
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		var validationErrors []ValidationError
		for _, err := range c.Errors {
			errs, ok := err.Err.(validator.ValidationErrors)
			if !ok {
				continue
			}
			for _, e := range errs {
				msg := errorMessages[e.Tag()]
				if msg == "" {
					msg = e.Error()
				}
				validationErrors = append(validationErrors, ValidationError{
					Field:   e.Field(),
					Message: msg,
				})
			}
		}

		if len(validationErrors) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"errors": validationErrors,
			})
		}
	}
}
