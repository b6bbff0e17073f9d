package result

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// classifyMapping handles string-keyed maps. ok is false when raw is not such
// a map or carries neither key; err is set when a recognised key holds a value
// of the wrong type.
func classifyMapping(raw any) (Canonical, bool, error) {
	m, ok := asStringMap(raw)
	if !ok {
		return Canonical{}, false, nil
	}

	if value, present := m["text"]; present {
		text, err := textValue(value)
		if err != nil {
			return Canonical{}, true, &ShapeError{Value: raw, Reason: fmt.Sprintf(`"text": %v`, err)}
		}
		out := Canonical{Text: text, Shape: ShapeMapping}
		applyMappingOptional(&out, m)
		return out, true, nil
	}

	if value, present := m["texts"]; present {
		first, _, nonEmpty := firstElement(value)
		if !nonEmpty {
			return Canonical{}, false, nil
		}
		text, err := textValue(first)
		if err != nil {
			return Canonical{}, true, &ShapeError{Value: raw, Reason: fmt.Sprintf(`"texts"[0]: %v`, err)}
		}
		out := Canonical{Text: text, Shape: ShapeMappingTexts}
		applyMappingOptional(&out, m)
		return out, true, nil
	}

	return Canonical{}, false, nil
}

func applyMappingOptional(out *Canonical, m map[string]any) {
	if lang, ok := m["language"].(string); ok {
		out.Language = lang
	}
	if value, ok := numberValue(m["confidence"]); ok {
		out.Confidence = &value
	}
}

func asStringMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	}

	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func textValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanFloat():
		return rv.Float(), true
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}
