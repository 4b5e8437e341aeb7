package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
)

var (
	confCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

	once     sync.Once
	instance *playground.Validate
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	ValidateVar(field string, value interface{}, tag string) error
}

type validator struct {
	v *playground.Validate
}

// New returns a Validator sharing the engine gin uses for binding, so
// custom tags registered here apply to ShouldBindJSON as well.
func New() Validator {
	return &validator{v: Engine()}
}

// Engine returns the shared go-playground instance with the custom tags
// registered.
func Engine() *playground.Validate {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
			instance = v
		} else {
			instance = playground.New()
		}
		instance.SetTagName("binding")
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			}
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = instance.RegisterValidation("confcode", func(fl playground.FieldLevel) bool {
			return confCodePattern.MatchString(fl.Field().String())
		})
	})
	return instance
}

func (v *validator) Validate(obj interface{}) error {
	if err := v.v.Struct(obj); err != nil {
		return Describe(err)
	}
	return nil
}

func (v *validator) ValidateVar(field string, value interface{}, tag string) error {
	if err := v.v.Var(value, tag); err != nil {
		return fmt.Errorf("%s %s", field, describeTag(tag))
	}
	return nil
}

// IsEmail reports whether s is a single well-formed address.
func IsEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	return Engine().Var(s, "email") == nil
}

// Describe flattens validator errors into a single readable message.
// Other errors, such as JSON decode failures, are returned unchanged.
func Describe(err error) error {
	var verrs playground.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return stderrors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe playground.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "confcode":
		return field + " must be a 6 digit code"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func describeTag(tag string) string {
	switch {
	case strings.Contains(tag, "email"):
		return "must be a valid email"
	case strings.Contains(tag, "required"):
		return "is required"
	default:
		return "is invalid"
	}
}
