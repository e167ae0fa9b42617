package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around object", `Sure! Here it is: {"a":{"b":2}} Hope it helps.`, `{"a":{"b":2}}`},
		{"prose around array", `Questions: [{"q":1}] done`, `[{"q":1}]`},
		{"garbage", `not json at all`, `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON() = %q; want %q", got, tt.want)
			}
		})
	}
}

var testSchema = &Schema{
	Name: "test-pair",
	Definition: `{
		"type": "object",
		"required": ["name", "count"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer", "minimum": 1}
		}
	}`,
}

func TestDecodeStructured(t *testing.T) {
	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := DecodeStructured(testSchema, "```json\n{\"name\":\"x\",\"count\":2}\n```", &out); err != nil {
		t.Fatalf("DecodeStructured() error = %v", err)
	}
	if out.Name != "x" || out.Count != 2 {
		t.Errorf("out = %+v", out)
	}
}

func TestDecodeStructured_Errors(t *testing.T) {
	for _, raw := range []string{
		`{"name":"x"}`,
		`{"name":"x","count":0}`,
		`{"name":`,
	} {
		var out map[string]any
		err := DecodeStructured(testSchema, raw, &out)
		var se *ShapeError
		if !errors.As(err, &se) {
			t.Errorf("DecodeStructured(%q) error = %v; want *ShapeError", raw, err)
			continue
		}
		if se.Raw != raw {
			t.Errorf("Raw = %q; want %q", se.Raw, raw)
		}
	}
}
