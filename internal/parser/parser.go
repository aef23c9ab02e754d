// Package parser validates and decodes the raw text an LLM returns into the
// structured values each query kind expects. All handling of malformed
// generations lives here.
//
// The parser never judges plausibility. A negative or absurdly large amount
// is returned as-is; what to do with it is the caller's policy.
package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fleveque/crm-service/internal/model"
)

// ErrSchema means the provider answered but the payload does not have the
// expected structured shape.
var ErrSchema = errors.New("llm response does not match expected schema")

// numberWithUnit matches a leading number followed by an optional unit token,
// e.g. "3", "3g", "3.5 grams", "70 kg CO2e".
var numberWithUnit = regexp.MustCompile(`^([-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?)\s*(\p{L}[\p{L}\p{N}\s./%-]*)?$`)

// ParseMaterialAmount reads {"amount": <grams>} from raw.
func ParseMaterialAmount(raw string) (float64, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return 0, err
	}
	return number(obj, "amount")
}

// ParseCO2 reads {"co2Emission": <kg>} from raw. "co2Kg" and "co2" are
// accepted as aliases since models drift from the requested key.
func ParseCO2(raw string) (float64, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return 0, err
	}
	return number(obj, "co2Emission", "co2Kg", "co2")
}

// ParseCommercialInfo reads {"manufacturer": "...", "commercialName": "..."} from raw.
// Both fields must be non-empty strings.
func ParseCommercialInfo(raw string) (model.CommercialInfo, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return model.CommercialInfo{}, err
	}

	manufacturer, err := text(obj, "manufacturer")
	if err != nil {
		return model.CommercialInfo{}, err
	}
	name, err := text(obj, "commercialName")
	if err != nil {
		return model.CommercialInfo{}, err
	}

	return model.CommercialInfo{Manufacturer: manufacturer, CommercialName: name}, nil
}

// extractObject strips markdown fences and returns the outermost JSON object in raw.
func extractObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", schemaError("empty response")
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", schemaError("no JSON object in response: %s", truncate(s, 80))
	}

	obj := s[start : end+1]
	if !gjson.Valid(obj) {
		return "", schemaError("malformed JSON: %s", truncate(obj, 80))
	}
	return obj, nil
}

// number reads the first present key as a number, coercing "3g"-style strings.
func number(obj string, keys ...string) (float64, error) {
	for _, key := range keys {
		res := gjson.Get(obj, key)
		if !res.Exists() {
			continue
		}

		switch res.Type {
		case gjson.Number:
			return finite(key, res.Num)
		case gjson.String:
			return coerceNumber(key, res.Str)
		default:
			return 0, schemaError("field %q is %s, want number", key, res.Type)
		}
	}
	return 0, schemaError("missing field %q", keys[0])
}

// coerceNumber strips a trailing unit token and parses the leading number.
func coerceNumber(key, s string) (float64, error) {
	m := numberWithUnit.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, schemaError("field %q is not numeric: %q", key, s)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, schemaError("field %q is not numeric: %q", key, s)
	}
	return finite(key, v)
}

// finite rejects values JSON cannot carry back out, such as 1e999.
func finite(key string, v float64) (float64, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, schemaError("field %q is out of range: %v", key, v)
	}
	return v, nil
}

func text(obj string, key string) (string, error) {
	res := gjson.Get(obj, key)
	if !res.Exists() {
		return "", schemaError("missing field %q", key)
	}
	if res.Type != gjson.String {
		return "", schemaError("field %q is %s, want string", key, res.Type)
	}

	v := strings.TrimSpace(res.Str)
	if v == "" {
		return "", schemaError("field %q is empty", key)
	}
	return v, nil
}

func schemaError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
