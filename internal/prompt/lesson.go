package prompt

import (
	"fmt"
	"strings"
)

// LessonStart asks for a 3-5 step lesson plan and an explanation of the first
// step as one minified JSON object.
func LessonStart(personaPrompt, topic, query, context string) string {
	var sb strings.Builder

	writePersona(&sb, personaPrompt)
	fmt.Fprintf(&sb, "You are an expert %s mentor. A user wants to learn about %q.\n", strings.ToUpper(topic), query)
	sb.WriteString(`You must use the provided context to form your answer.
Your task is to:
1. Create a step-by-step lesson plan with 3-5 sub-topics.
2. Write a concise, friendly, and welcoming explanation for ONLY the first sub-topic.
3. Use short paragraphs, bullet points, and simple markdown (like **bolding**) to make it easy to read in a chat.
Respond with a single, minified JSON object. Do not add any text or markdown formatting before or after the JSON.
The JSON MUST follow this exact format:
{"lessonPlan": ["Sub-topic 1", "Sub-topic 2", "Sub-topic 3"], "explanation": "Your concise, friendly, markdown-formatted explanation..."}
`)
	writeContext(&sb, context)
	fmt.Fprintf(&sb, "USER QUERY:\n%s\n", query)
	return sb.String()
}

// LessonContinuation asks for the explanation of one sub-topic. The
// "conclusion" key is requested only when final is true.
func LessonContinuation(personaPrompt, topic, subTopic, context string, final bool) string {
	var sb strings.Builder

	writePersona(&sb, personaPrompt)
	fmt.Fprintf(&sb, "You are an expert %s mentor, continuing a lesson.\n", strings.ToUpper(topic))
	sb.WriteString("You must use the provided context to form your answer.\n")
	fmt.Fprintf(&sb, "The user wants to learn the next sub-topic: %q.\n", subTopic)
	sb.WriteString("Your task is to:\n1. Write a concise and friendly explanation for ONLY this sub-topic.\n")
	if final {
		sb.WriteString("2. After the explanation, write a brief summary of the entire topic and a congratulatory message.\n")
		sb.WriteString("3. Use simple markdown (like **bolding**).\n")
	} else {
		sb.WriteString("2. Use simple markdown (like **bolding**).\n")
	}
	sb.WriteString("Respond with a single, minified JSON object. Do not add any text or markdown formatting before or after the JSON.\n")
	sb.WriteString("The JSON MUST follow this exact format:\n")
	if final {
		sb.WriteString(`{"explanation": "Detailed explanation...", "conclusion": "Short summary & congrats..."}` + "\n")
	} else {
		sb.WriteString(`{"explanation": "Detailed explanation..."}` + "\n")
	}
	writeContext(&sb, context)
	fmt.Fprintf(&sb, "SUB-TOPIC TO EXPLAIN:\n%s\n", subTopic)
	return sb.String()
}

func writePersona(sb *strings.Builder, personaPrompt string) {
	if p := CleanPersona(personaPrompt); p != "" {
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}
}

func writeContext(sb *strings.Builder, context string) {
	sb.WriteString("---\nCONTEXT:\n")
	if strings.TrimSpace(context) == "" {
		sb.WriteString("(no additional context)\n")
	} else {
		sb.WriteString(context)
		sb.WriteString("\n")
	}
	sb.WriteString("---\n")
}
