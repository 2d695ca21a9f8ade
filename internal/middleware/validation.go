package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "ocrdash/internal/errors"
	"ocrdash/pkg/contracts/domain"
)

// RequestValidator validates decoded request parameters using struct tags.
// Field names in messages come from the `query` tag, then `json`.
type RequestValidator struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewRequestValidator creates a validator with the custom rules registered
func NewRequestValidator(logger *slog.Logger) *RequestValidator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()

	v.RegisterValidation("isodate", isISODate)
	v.RegisterValidation("field", isCanonicalField)
	v.RegisterValidation("fieldlist", isCanonicalFieldList)
	v.RegisterValidation("numeric_or_empty", isNumericOrEmpty)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	return &RequestValidator{
		validator: v,
		logger:    logger.With(slog.String("component", "request_validator")),
	}
}

// ValidateStruct validates a struct and returns an APIError listing every
// failed field
func (m *RequestValidator) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("validate request: %w", err)
	}

	params := make([]apierrors.ParamError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		params = append(params, apierrors.ParamError{
			Name:   fe.Field(),
			Reason: formatValidationError(fe),
		})
	}
	m.logger.Debug("request validation failed", slog.Int("errors", len(params)))
	return apierrors.InvalidParams(params...)
}

// ContentTypeValidator ensures requests with a body carry one of contentTypes
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType != "" {
				for _, allowed := range contentTypes {
					if strings.HasPrefix(contentType, allowed) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			apiErr := apierrors.UnsupportedContentType(contentType, contentTypes)
			render.Status(r, apiErr.StatusCode)
			render.JSON(w, r, apiErr)
		})
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "isodate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "field":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(fieldNames(), ", "))
	case "fieldlist":
		return fmt.Sprintf("%s must be a comma-separated list of: %s", field, strings.Join(fieldNames(), ", "))
	case "numeric_or_empty":
		return fmt.Sprintf("%s must be a number", field)
	case "boolean":
		return fmt.Sprintf("%s must be true or false", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func fieldNames() []string {
	fields := domain.CanonicalFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}

// Custom validators

// isISODate validates a calendar date (YYYY-MM-DD)
func isISODate(fl validator.FieldLevel) bool {
	date := fl.Field().String()
	if date == "" {
		return true
	}
	_, err := time.Parse(domain.DateLayout, date)
	return err == nil
}

// isCanonicalField validates a single canonical field name
func isCanonicalField(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return true
	}
	_, err := domain.ParseField(name)
	return err == nil
}

// isCanonicalFieldList validates a comma-separated list of field names
func isCanonicalFieldList(fl validator.FieldLevel) bool {
	list := fl.Field().String()
	if list == "" {
		return true
	}
	_, err := domain.ParseFields(list)
	return err == nil
}

// isNumericOrEmpty accepts a decimal number with a point or a comma
func isNumericOrEmpty(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return true
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}
