package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

func GetTraceID(c *gin.Context) (string, error) {
	traceID := c.GetString(pkg.TraceId)
	if IsEmpty(traceID) {
		return "", errors.New("trace id is empty")
	}
	return traceID, nil
}

// SplitCSV splits a comma separated value, dropping blanks.
func SplitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors logs every failed validation rule and folds them into one error naming the env keys.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	keys := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		key := fe.Field()
		if field, ok := t.FieldByName(fe.StructField()); ok {
			if tag := field.Tag.Get("mapstructure"); tag != "" {
				key = tag
			}
		}
		logger.Error("invalid_config_value",
			zap.String("key", key),
			zap.String("rule", fe.Tag()),
			zap.String("param", fe.Param()))
		keys = append(keys, fmt.Sprintf("%s(%s)", key, fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(keys, ", "))
}
