package lesson

import "github.com/felixgeelhaar/mentora/internal/llm"

var startSchema = &llm.Schema{
	Name: "lesson_start",
	Definition: `{
		"type": "object",
		"required": ["lessonPlan", "explanation"],
		"properties": {
			"lessonPlan": {
				"type": "array",
				"minItems": 3,
				"maxItems": 5,
				"items": {"type": "string", "minLength": 1}
			},
			"explanation": {"type": "string", "minLength": 1}
		}
	}`,
}

var stepSchema = &llm.Schema{
	Name: "lesson_step",
	Definition: `{
		"type": "object",
		"required": ["explanation"],
		"properties": {
			"explanation": {"type": "string", "minLength": 1},
			"conclusion": {"type": ["string", "null"]}
		}
	}`,
}

var finalStepSchema = &llm.Schema{
	Name: "lesson_final_step",
	Definition: `{
		"type": "object",
		"required": ["explanation", "conclusion"],
		"properties": {
			"explanation": {"type": "string", "minLength": 1},
			"conclusion": {"type": "string", "minLength": 1}
		}
	}`,
}
