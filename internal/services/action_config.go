package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// ConfigError is a problem with an automation's action_config or a record
// it references. Strategies turn it into a failure Result, never a run error.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// decodeActionConfig decodes the loosely typed map into a typed struct,
// coercing numeric strings and comma-separated lists, then validates it.
// suffix is appended to validation messages (e.g. " in action_config").
func decodeActionConfig(raw map[string]interface{}, out interface{}, suffix string) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			sliceToCommaStringHook,
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return &ConfigError{Msg: fmt.Sprintf("invalid action_config: %v", err)}
	}

	if err := configValidator().Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return validationMessage(verrs[0], suffix)
		}
		return &ConfigError{Msg: err.Error()}
	}
	return nil
}

func validationMessage(fe validator.FieldError, suffix string) *ConfigError {
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required%s", field, suffix)
	case "gte", "min":
		msg = fmt.Sprintf("%s must be at least %s%s", field, fe.Param(), suffix)
	default:
		msg = fmt.Sprintf("%s is invalid%s", field, suffix)
	}
	return &ConfigError{Field: field, Msg: msg}
}

// sliceToCommaStringHook lets list-valued config keys such as tags be given
// either as "a, b" or ["a", "b"].
func sliceToCommaStringHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String || (from.Kind() != reflect.Slice && from.Kind() != reflect.Array) {
		return data, nil
	}
	v := reflect.ValueOf(data)
	parts := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		parts = append(parts, fmt.Sprint(v.Index(i).Interface()))
	}
	return strings.Join(parts, ","), nil
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
