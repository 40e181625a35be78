// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// sensitiveKeywords mark field and env names whose values never reach logs.
var sensitiveKeywords = []string{
	"password",
	"secret",
	"token",
	"anonkey",
	"anon_key",
	"apikey",
	"api_key",
	"credential",
}

const masked = "***"

// MaskSecrets returns a map form of data with sensitive fields replaced by
// "***". Structs, maps, slices and pointers are walked recursively.
func MaskSecrets(data any) any {
	if data == nil {
		return nil
	}
	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		out := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			out[key] = maskValue(key, iter.Value())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, val.Len())
		for i := range out {
			out[i] = MaskSecrets(val.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]any, val.NumField())
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			out[field.Name] = maskValue(field.Name, val.Field(i))
		}
		return out
	default:
		if d, ok := val.Interface().(time.Duration); ok {
			return d.String()
		}
		return val.Interface()
	}
}

func maskValue(key string, v reflect.Value) any {
	if isSensitiveKey(key) {
		if v.Kind() == reflect.String && v.Len() == 0 {
			return ""
		}
		return masked
	}
	return MaskSecrets(v.Interface())
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// LogSummary writes the effective configuration at info level with secrets
// masked.
func LogSummary(logger zerolog.Logger, cfg AppConfig) {
	logger.Info().
		Str("event", "config.loaded").
		Interface("config", MaskSecrets(cfg)).
		Msg("configuration loaded")
}
