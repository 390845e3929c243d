/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/carverauto/ssm/pkg/logger"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

// EnvConfigLoader loads configuration from environment variables.
//
// A complete document in <prefix>CONFIG_JSON wins. Otherwise each json-tagged
// field maps to <prefix><PARENT>_<FIELD>, so SSM_DATABASE_HOST sets
// Database.Host. Values that are not scalars are decoded as JSON, which also
// covers models.Duration ("90s").
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader creates a new environment variable config loader.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{logger: log, prefix: prefix}
}

// Load implements ConfigLoader.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if blob := os.Getenv(e.prefix + "CONFIG_JSON"); blob != "" {
		if err := json.Unmarshal([]byte(blob), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	if v.Elem().Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	applied := e.walk(v.Elem(), e.prefix)

	e.logger.Info().Int("fields", applied).Msg("Loaded configuration from environment variables")

	return nil
}

func (e *EnvConfigLoader) walk(v reflect.Value, prefix string) int {
	applied := 0
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}

		envName := prefix + strings.ToUpper(name)

		if raw, ok := os.LookupEnv(envName); ok && raw != "" {
			if err := setField(field, raw); err != nil {
				e.logger.Warn().Str("env", envName).Err(err).Msg("Ignoring invalid environment value")
				continue
			}

			applied++

			continue
		}

		switch {
		case field.Kind() == reflect.Struct:
			applied += e.walk(field, envName+"_")
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			nested := reflect.New(field.Type().Elem())
			if !field.IsNil() {
				nested.Elem().Set(field.Elem())
			}

			if n := e.walk(nested.Elem(), envName+"_"); n > 0 {
				field.Set(nested)
				applied += n
			}
		}
	}

	return applied
}

func setField(field reflect.Value, raw string) error {
	if _, isJSON := field.Addr().Interface().(json.Unmarshaler); isJSON {
		return json.Unmarshal([]byte(strconv.Quote(raw)), field.Addr().Interface())
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}

		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(raw, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}

			field.Set(reflect.ValueOf(parts))

			return nil
		}

		return json.Unmarshal([]byte(raw), field.Addr().Interface())
	default:
		return json.Unmarshal([]byte(raw), field.Addr().Interface())
	}

	return nil
}
