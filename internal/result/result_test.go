package result

import (
	"encoding/json"
	"errors"
	"testing"
)

type alignedResult struct {
	text       string
	language   string
	confidence float64
}

func (a alignedResult) Text() string        { return a.text }
func (a alignedResult) Language() string    { return a.language }
func (a alignedResult) Confidence() float64 { return a.confidence }

type ranked struct {
	texts      []string
	language   string
	confidence float64
}

func (r ranked) Texts() []string     { return r.texts }
func (r ranked) Language() string    { return r.language }
func (r ranked) Confidence() float64 { return r.confidence }

type textOnly struct{ text string }

func (t *textOnly) Text() string { return t.text }

func TestNormalizeRecognisedShapesAgree(t *testing.T) {
	t.Parallel()

	const (
		text = "  hello world \n"
		lang = "EN"
		conf = 0.87
	)

	tests := []struct {
		name  string
		raw   any
		shape Shape
	}{
		{"sequence of objects", []alignedResult{{text, lang, conf}, {"ignored", "fr", 0.1}}, ShapeSequence},
		{"single object", alignedResult{text, lang, conf}, ShapeObject},
		{"object with alternatives", ranked{[]string{text, "other"}, lang, conf}, ShapeAlternatives},
		{"mapping with text", map[string]any{"text": text, "language": lang, "confidence": conf}, ShapeMapping},
		{"mapping with texts", map[string]any{"texts": []any{text, "other"}, "language": lang, "confidence": conf}, ShapeMappingTexts},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.raw)
			if err != nil {
				t.Fatalf("Normalize() error: %v", err)
			}
			if got.Shape != tc.shape {
				t.Fatalf("shape = %s, want %s", got.Shape, tc.shape)
			}
			if got.Text != "hello world" {
				t.Fatalf("text = %q", got.Text)
			}
			if got.Language != "en" {
				t.Fatalf("language = %q", got.Language)
			}
			if got.Confidence == nil || *got.Confidence != conf {
				t.Fatalf("confidence = %v", got.Confidence)
			}
		})
	}
}

func TestNormalizeOptionalFieldsAbsent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
	}{
		{"pointer object", &textOnly{text: "hi"}},
		{"sequence of strings", []string{"hi", "there"}},
		{"sequence of pointer objects", []*textOnly{{text: "hi"}}},
		{"string map", map[string]string{"text": "hi"}},
		{"mapping texts typed", map[string][]string{"texts": {"hi"}}},
		{"nested mapping in sequence", []any{map[string]any{"text": "hi"}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.raw)
			if err != nil {
				t.Fatalf("Normalize() error: %v", err)
			}
			if got.Text != "hi" {
				t.Fatalf("text = %q", got.Text)
			}
			if got.Language != "" || got.Confidence != nil {
				t.Fatalf("expected no optional fields, got %+v", got)
			}
		})
	}
}

func TestNormalizeDecodedJSONMapping(t *testing.T) {
	var raw any
	if err := json.Unmarshal([]byte(`{"text":" bonjour ","language":"fr","confidence":0.5}`), &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Text != "bonjour" || got.Language != "fr" || got.Confidence == nil || *got.Confidence != 0.5 {
		t.Fatalf("unexpected canonical: %+v", got)
	}
}

func TestNormalizeMappingIntegerConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
	}{
		{"int32", int32(3), 3},
		{"uint8", uint8(1), 1},
		{"float32", float32(0.5), 0.5},
		{"numeric string", "0.25", 0.25},
	}
	for _, tc := range tests {
		got, err := Normalize([]map[string]any{{"text": " yo ", "confidence": tc.raw}})
		if err != nil {
			t.Fatalf("%s: Normalize() error: %v", tc.name, err)
		}
		if got.Text != "yo" || got.Confidence == nil || *got.Confidence != tc.want {
			t.Fatalf("%s: unexpected canonical: %+v", tc.name, got)
		}
	}

	got, err := Normalize(map[string]any{"text": "yo", "confidence": []int{1}})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Confidence != nil {
		t.Fatalf("non-numeric confidence kept: %v", *got.Confidence)
	}
}

func TestNormalizeMappingNullTextIsEmpty(t *testing.T) {
	got, err := Normalize(map[string]any{"text": nil})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Text != "" || got.Shape != ShapeMapping {
		t.Fatalf("unexpected canonical: %+v", got)
	}
}

func TestNormalizeTextTakesPriorityOverTexts(t *testing.T) {
	got, err := Normalize(map[string]any{"text": "primary", "texts": []string{"secondary"}})
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if got.Text != "primary" || got.Shape != ShapeMapping {
		t.Fatalf("unexpected canonical: %+v", got)
	}
}

func TestNormalizeUnrecognisedShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"integer", 42},
		{"bare string", "hello"},
		{"bytes", []byte("hello")},
		{"empty sequence", []alignedResult{}},
		{"sequence of integers", []int{1, 2}},
		{"empty alternatives", ranked{}},
		{"mapping without keys", map[string]any{"transcript": "hi"}},
		{"mapping with empty texts", map[string]any{"texts": []string{}}},
		{"mapping with numeric text", map[string]any{"text": 12}},
		{"mapping with numeric texts", map[string]any{"texts": []int{1}}},
		{"struct without methods", struct{ Text string }{"hi"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.raw)
			if err == nil {
				t.Fatalf("expected error, got %+v", got)
			}
			if !errors.Is(err, ErrUnrecognizedShape) {
				t.Fatalf("expected ErrUnrecognizedShape, got %v", err)
			}
			var shapeErr *ShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("expected *ShapeError, got %T", err)
			}
		})
	}
}

func TestCanonicalLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"EN", "en"},
		{" pt_br ", "pt-BR"},
		{"und", ""},
		{"not a language!", "not a language!"},
	}
	for _, tc := range tests {
		if got := CanonicalLanguage(tc.in); got != tc.want {
			t.Fatalf("CanonicalLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShapeString(t *testing.T) {
	if ShapeMappingTexts.String() != "mapping_texts" || Shape(99).String() != "unrecognized" {
		t.Fatal("unexpected Shape.String output")
	}
}
