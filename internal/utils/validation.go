package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// MinCarYear is the oldest model year accepted on a booking.
const MinCarYear = 1900

var registerOnce sync.Once

// RegisterValidators installs the custom rules on gin's validator and makes
// field errors report JSON names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return models.AppointmentTimePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("caryear", func(fl validator.FieldLevel) bool {
			year := int(fl.Field().Int())
			return year >= MinCarYear && year <= time.Now().Year()+1
		})
		_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
			_, err := models.ParseDate(fl.Field().String())
			return err == nil
		})
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// BindAndValidate binds the request body to a struct and validates it.
// On failure it records a validation error on the context and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(ValidationError(err))
		return false
	}
	return true
}

// BindOptional is BindAndValidate for requests whose body may be left out.
// An empty body, chunked or not, validates the zero value of obj.
func BindOptional(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	err := binding.JSON.Bind(c.Request, obj)
	if errors.Is(err, io.EOF) || (err != nil && c.Request.Body == nil) {
		err = binding.Validator.ValidateStruct(obj)
	}
	if err != nil {
		_ = c.Error(ValidationError(err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func BindQuery(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	if err := c.ShouldBindQuery(obj); err != nil {
		_ = c.Error(ValidationError(err))
		return false
	}
	return true
}

// ValidationError converts a binding failure into an application validation error.
func ValidationError(err error) *apperror.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperror.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperror.FieldError{
				Field:   fieldPath(fe),
				Message: fieldMessage(fe),
			})
		}
		return apperror.Validation("Validation failed", fields...)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return apperror.Validation("Invalid JSON payload")
	case errors.As(err, &typeErr):
		return apperror.Field(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
	}
	return apperror.Validation("Invalid request payload: " + err.Error())
}

// fieldPath drops the top-level struct name from the namespace ("req.car.year" -> "car.year").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "hhmm":
		return name + " must be a valid time (HH:MM)"
	case "caryear":
		return fmt.Sprintf("%s must be between %d and %d", name, MinCarYear, time.Now().Year()+1)
	case "ymd":
		return name + " must be a valid date (YYYY-MM-DD)"
	case "uuid", "uuid4":
		return name + " must be a valid id"
	}
	return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
}
