package grading

import "github.com/felixgeelhaar/mentora/internal/llm"

var gradeSchema = &llm.Schema{
	Name: "grade",
	Definition: `{
		"type": "object",
		"required": ["feedback", "summary"],
		"properties": {
			"feedback": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["good", "missing"],
					"properties": {
						"good": {"type": "string"},
						"missing": {"type": "string"}
					}
				}
			},
			"summary": {"type": "string", "minLength": 1}
		}
	}`,
}

var questionsSchema = &llm.Schema{
	Name: "questions",
	Definition: `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["question", "difficulty"],
			"properties": {
				"question": {"type": "string", "minLength": 1},
				"difficulty": {"type": "string", "enum": ["easy", "medium", "hard", "Easy", "Medium", "Hard"]}
			}
		}
	}`,
}
