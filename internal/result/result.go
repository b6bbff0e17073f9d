// Package result converts the heterogeneous values returned by inference
// engines into one canonical transcription record.
//
// Engines may return a sequence of result objects, a single object, or a
// keyed mapping. Classify matches these shapes in a fixed priority order; a
// value matching none of them is a ShapeError, never an empty transcript.
package result

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Shape identifies which recognised engine output form a value matched.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	// ShapeSequence is a non-empty slice whose first element is used.
	ShapeSequence
	// ShapeObject is a value exposing a Text() method.
	ShapeObject
	// ShapeAlternatives is a value exposing Texts(); the first alternative is used.
	ShapeAlternatives
	// ShapeMapping is a string-keyed map holding a "text" key.
	ShapeMapping
	// ShapeMappingTexts is a string-keyed map holding a non-empty "texts" collection.
	ShapeMappingTexts
)

func (s Shape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeObject:
		return "object"
	case ShapeAlternatives:
		return "alternatives"
	case ShapeMapping:
		return "mapping"
	case ShapeMappingTexts:
		return "mapping_texts"
	default:
		return "unrecognized"
	}
}

// Texter is implemented by engine results carrying a single transcript.
type Texter interface {
	Text() string
}

// Alternatives is implemented by engine results carrying ranked transcripts.
type Alternatives interface {
	Texts() []string
}

// LanguageCarrier optionally reports the detected language.
type LanguageCarrier interface {
	Language() string
}

// ConfidenceCarrier optionally reports a confidence score.
type ConfidenceCarrier interface {
	Confidence() float64
}

// ErrUnrecognizedShape is matched by every ShapeError.
var ErrUnrecognizedShape = errors.New("result: unrecognized shape")

// ShapeError reports an engine value that matches no recognised shape.
type ShapeError struct {
	Value  any
	Reason string
}

func (e *ShapeError) Error() string {
	msg := fmt.Sprintf("cannot extract text from result of type %T", e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether target is ErrUnrecognizedShape.
func (e *ShapeError) Is(target error) bool {
	return target == ErrUnrecognizedShape
}

// Canonical is the normalised transcription record.
type Canonical struct {
	Text       string
	Language   string
	Confidence *float64
	Shape      Shape
}

// Normalize classifies raw and returns its canonical form with trimmed text
// and a canonical language tag.
func Normalize(raw any) (Canonical, error) {
	out, err := Classify(raw)
	if err != nil {
		return Canonical{}, err
	}
	out.Text = strings.TrimSpace(out.Text)
	out.Language = CanonicalLanguage(out.Language)
	return out, nil
}

// Classify matches raw against the recognised shapes in priority order:
// sequence, object, alternatives, mapping with "text", mapping with "texts".
func Classify(raw any) (Canonical, error) {
	if raw == nil {
		return Canonical{}, &ShapeError{Value: raw, Reason: "engine returned nil"}
	}

	first, isSequence, nonEmpty := firstElement(raw)
	if isSequence && nonEmpty {
		out, err := classifyElement(first)
		if err != nil {
			return Canonical{}, &ShapeError{Value: raw, Reason: fmt.Sprintf("first element: %v", err)}
		}
		out.Shape = ShapeSequence
		return out, nil
	}

	if out, ok := classifyObject(raw); ok {
		return out, nil
	}
	if out, ok, err := classifyMapping(raw); ok || err != nil {
		return out, err
	}
	if isSequence {
		return Canonical{}, &ShapeError{Value: raw, Reason: "empty sequence"}
	}
	return Canonical{}, &ShapeError{Value: raw}
}

// classifyElement handles the first element of a sequence. Plain strings are
// accepted as bare transcripts.
func classifyElement(elem any) (Canonical, error) {
	if s, ok := elem.(string); ok {
		return Canonical{Text: s, Shape: ShapeObject}, nil
	}
	if elem == nil {
		return Canonical{}, &ShapeError{Value: elem, Reason: "nil element"}
	}
	if out, ok := classifyObject(elem); ok {
		return out, nil
	}
	if out, ok, err := classifyMapping(elem); ok || err != nil {
		return out, err
	}
	return Canonical{}, &ShapeError{Value: elem}
}

func classifyObject(raw any) (Canonical, bool) {
	if t, ok := raw.(Texter); ok {
		out := Canonical{Text: t.Text(), Shape: ShapeObject}
		applyOptional(&out, raw)
		return out, true
	}
	if a, ok := raw.(Alternatives); ok {
		texts := a.Texts()
		if len(texts) == 0 {
			return Canonical{}, false
		}
		out := Canonical{Text: texts[0], Shape: ShapeAlternatives}
		applyOptional(&out, raw)
		return out, true
	}
	return Canonical{}, false
}

func applyOptional(out *Canonical, raw any) {
	if l, ok := raw.(LanguageCarrier); ok {
		out.Language = l.Language()
	}
	if c, ok := raw.(ConfidenceCarrier); ok {
		value := c.Confidence()
		out.Confidence = &value
	}
}

// firstElement reports whether raw is a slice or array and, if it is
// non-empty, its first element. Strings and byte slices are not sequences.
func firstElement(raw any) (first any, isSequence, nonEmpty bool) {
	v := reflect.ValueOf(raw)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return nil, false, false
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false, false
	}
	if v.Len() == 0 {
		return nil, true, false
	}
	return v.Index(0).Interface(), true, true
}
