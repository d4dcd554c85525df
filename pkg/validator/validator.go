// Package validator wraps go-playground/validator with the console's field naming, its custom rules
// and readable messages.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Custom tags registered on the shared validator.
const (
	TagSlug       = "slug"
	TagRoute      = "route"
	TagPermission = "permission"
)

var (
	slugPattern       = regexp.MustCompile(`^[a-z0-9]+(?:[-_.][a-z0-9]+)*$`)
	permissionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(?:\.[a-z][a-z0-9_]*)+$`)
)

var messages = map[string]string{
	"required":    "{field} is required",
	"email":       "{field} must be a valid email address",
	"min":         "{field} must be at least {param} characters",
	"max":         "{field} must be at most {param} characters",
	"gte":         "{field} must be greater than or equal to {param}",
	"gt":          "{field} must be greater than {param}",
	"oneof":       "{field} must be one of: {param}",
	TagSlug:       "{field} may only contain lowercase letters, digits and single separators",
	TagRoute:      "{field} must be an absolute path such as /leave",
	TagPermission: "{field} must look like module.action",
}

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// Message renders the failure as a short sentence.
func (v ValidationError) Message() string {
	field := strings.ToLower(strings.ReplaceAll(v.Field, "_", " "))
	if field == "" {
		field = "field"
	}
	template, ok := messages[v.Tag]
	if !ok {
		template = "{field} failed validation: " + v.Tag
		if v.Param != "" {
			template += "={param}"
		}
	}
	return strings.NewReplacer("{field}", field, "{param}", v.Param).Replace(template)
}

// ValidationErrors collects the failures of one struct.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, failure := range v {
		parts[i] = failure.Message()
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its first message.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, failure := range v {
		if _, seen := out[failure.Field]; !seen {
			out[failure.Field] = failure.Message()
		}
	}
	return out
}

// ValidateStruct runs the struct's validate tags. Rule failures come back as ValidationErrors.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	failures := make(ValidationErrors, len(fieldErrs))
	for i, fe := range fieldErrs {
		failures[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	}
	return failures
}

// RegisterValidation adds a custom rule to the shared validator.
func RegisterValidation(tag string, fn validator.Func) error {
	return instance().RegisterValidation(tag, fn)
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
		must(validate.RegisterValidation(TagSlug, matches(slugPattern)))
		must(validate.RegisterValidation(TagPermission, matches(permissionPattern)))
		must(validate.RegisterValidation(TagRoute, func(fl validator.FieldLevel) bool {
			route := fl.Field().String()
			return route == "" || (strings.HasPrefix(route, "/") && !strings.ContainsAny(route, " \t\n"))
		}))
	})
	return validate
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// jsonName reports fields by their JSON key.
func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
