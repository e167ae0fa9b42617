package study

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

var topicTable = map[string]map[domain.Level][]string{
	"dsa": {
		domain.LevelBeginner:     {"Arrays", "Linked Lists", "Stacks and Queues", "Big-O Notation", "Linear and Binary Search"},
		domain.LevelIntermediate: {"Hash Tables", "Binary Search Trees", "Heaps", "Recursion", "Sorting Algorithms"},
		domain.LevelAdvanced:     {"Graph Algorithms", "Dynamic Programming", "Tries", "Segment Trees", "Greedy Algorithms"},
	},
	"frontend": {
		domain.LevelBeginner:     {"HTML Semantics", "CSS Box Model", "JavaScript Basics", "The DOM", "Responsive Design"},
		domain.LevelIntermediate: {"Flexbox and Grid", "Asynchronous JavaScript", "React Components", "State Management", "Web Accessibility"},
		domain.LevelAdvanced:     {"Rendering Performance", "Server-Side Rendering", "Bundlers and Code Splitting", "Web Security", "Design Systems"},
	},
	"system-design": {
		domain.LevelBeginner:     {"Client-Server Model", "HTTP and REST", "Databases 101", "Caching Basics", "DNS and CDNs"},
		domain.LevelIntermediate: {"Load Balancing", "Database Indexing", "Message Queues", "Rate Limiting", "API Design"},
		domain.LevelAdvanced:     {"Sharding and Replication", "Consistency Models", "Distributed Consensus", "Event Sourcing", "Designing for Failure"},
	},
}

// fallbackTopics is used for personas whose subject has no table.
var fallbackTopics = map[domain.Level][]string{
	domain.LevelBeginner:     {"How Computers Run Programs", "Variables and Types", "Control Flow", "Functions"},
	domain.LevelIntermediate: {"Data Structures", "Algorithms", "Testing", "Version Control"},
	domain.LevelAdvanced:     {"Concurrency", "Systems Architecture", "Performance Tuning", "Security Fundamentals"},
}

// Topics returns the topics offered for a subject at a level.
func Topics(subject string, level domain.Level) []string {
	byLevel, ok := topicTable[strings.ToLower(strings.TrimSpace(subject))]
	if !ok {
		byLevel = fallbackTopics
	}
	return slices.Clone(byLevel[level])
}

// lookupTopic returns the table spelling of topic.
func lookupTopic(subject string, level domain.Level, topic string) (string, bool) {
	return lo.Find(Topics(subject, level), func(t string) bool {
		return strings.EqualFold(t, strings.TrimSpace(topic))
	})
}
