package knowledge

import (
	"regexp"
	"strings"
)

// Section is one heading-delimited chunk of a markdown document.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// ParseSections splits markdown into sections at each heading. Text before
// the first heading becomes an "Introduction" section.
func ParseSections(content string) []Section {
	var sections []Section
	var current *Section
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(body.String())
		if current.Content != "" {
			sections = append(sections, *current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Section{Heading: strings.TrimSpace(m[2]), Level: len(m[1])}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			current = &Section{Heading: "Introduction"}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// Truncate limits content length, breaking at paragraph boundaries when
// possible.
func Truncate(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}

	var out strings.Builder
	for _, para := range strings.Split(content, "\n\n") {
		if out.Len()+len(para)+2 > maxLen {
			break
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(para)
	}
	if out.Len() == 0 {
		return content[:maxLen-3] + "..."
	}
	return out.String()
}
