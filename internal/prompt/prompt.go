// Package prompt builds the instruction text sent to the text-generation
// model. Every function here is pure and deterministic.
package prompt

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// NoAnswer replaces blank answers in the grading prompt.
const NoAnswer = "No answer provided."

var specializations = map[domain.Subject]string{
	domain.SubjectDSA:          "Data Structures and Algorithms",
	domain.SubjectFrontend:     "Frontend Web Development (React, JS, CSS)",
	domain.SubjectSystemDesign: "System Design and Scalability",
}

// Specialization maps a subject to the label used in prompts. Unknown
// subjects fall back to "Computer Science".
func Specialization(subject domain.Subject) string {
	if label, ok := specializations[subject]; ok {
		return label
	}
	return "Computer Science"
}

// QuestionMix is the number of questions requested per difficulty.
type QuestionMix struct {
	Easy   int
	Medium int
	Hard   int
}

// Total returns the number of questions in the mix.
func (m QuestionMix) Total() int {
	return m.Easy + m.Medium + m.Hard
}

// String renders the mix the way it appears in the prompt.
func (m QuestionMix) String() string {
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s questions", n, label))
		}
	}
	add(m.Easy, "easy")
	add(m.Medium, "medium")
	add(m.Hard, "hard")
	return strings.Join(parts, " and ")
}

// Mix returns the difficulty mix for an interview. Unrecognized difficulties
// get ten medium questions.
func Mix(difficulty domain.Difficulty) QuestionMix {
	switch difficulty {
	case domain.DifficultyEasy:
		return QuestionMix{Easy: 7, Medium: 3}
	case domain.DifficultyMedium:
		return QuestionMix{Medium: 5, Hard: 5}
	case domain.DifficultyHard:
		return QuestionMix{Hard: 10}
	default:
		return QuestionMix{Medium: 10}
	}
}

// QuestionGeneration asks for exactly ten {question, difficulty} objects as a
// bare JSON array.
func QuestionGeneration(subject domain.Subject, difficulty domain.Difficulty) string {
	var sb strings.Builder

	sb.WriteString("You are an expert technical interviewer.\n")
	fmt.Fprintf(&sb, "Generate %d unique interview questions for a mid-level candidate in the specialization of %q.\n",
		domain.QuestionCount, Specialization(subject))
	fmt.Fprintf(&sb, "The %d questions must have the following difficulty mix: %s.\n",
		domain.QuestionCount, Mix(difficulty))
	sb.WriteString(`Return the questions as a JSON array of objects.
Each object must have a "question" key (string) and a "difficulty" key (string: "easy", "medium", or "hard").
Ensure the "difficulty" key accurately reflects the question's difficulty.
Return *only* the JSON array. Do not include any other text or explanation.
Example format:
[
  { "question": "What is a hash map?", "difficulty": "easy" },
  { "question": "Explain the trade-offs of B-trees.", "difficulty": "medium" }
]
`)
	return sb.String()
}

// SummaryTone is the tone rule the grader must follow for a difficulty.
func SummaryTone(difficulty domain.Difficulty) string {
	if difficulty == domain.DifficultyEasy {
		return `Be celebratory (e.g., "Great job, you've mastered the fundamentals!").`
	}
	return `Be professional and encouraging (e.g., "Excellent work on these complex topics.").`
}

// Grading pairs every question with its answer and asks for one feedback
// entry per question plus a summary.
func Grading(questions, answers []string, difficulty domain.Difficulty) string {
	var sb strings.Builder

	sb.WriteString("You are an expert technical interviewer and mentor.\n")
	fmt.Fprintf(&sb, "A candidate has provided the following answers to a %s difficulty interview.\n", difficulty)
	sb.WriteString("Your task is to review each answer and provide constructive feedback, and then provide a final summary.\n")
	sb.WriteString("Here are the questions and answers:\n\n")

	for i, q := range questions {
		answer := NoAnswer
		if i < len(answers) && strings.TrimSpace(answers[i]) != "" {
			answer = answers[i]
		}
		fmt.Fprintf(&sb, "Question %d: %s\n", i+1, q)
		fmt.Fprintf(&sb, "User's Answer %d: %s\n\n", i+1, answer)
	}

	sb.WriteString(`Please evaluate each answer and return your response as a single JSON object.
This object must have two keys: "feedback" and "summary".
`)
	fmt.Fprintf(&sb, `1. The "feedback" key must be a JSON array of exactly %d objects, one per question, in order. Each object must have two keys:
   - "good": A short sentence on what was good about the answer.
   - "missing": A short, constructive sentence on what was missing or could be improved.
`, len(questions))
	fmt.Fprintf(&sb, `2. The "summary" key must be a single string: a one-sentence acknowledgement based on the overall performance. %s
`, SummaryTone(difficulty))
	sb.WriteString(`Example response format:
{
  "feedback": [
    { "good": "You correctly identified the concept.", "missing": "You could have also mentioned its performance implications." }
  ],
  "summary": "Excellent work on these complex topics."
}
Return *only* the JSON object. Do not include any other text, markdown, or explanation.
`)
	return sb.String()
}
