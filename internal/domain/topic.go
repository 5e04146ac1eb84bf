package domain

import "strings"

// DefaultTopic is assigned when no rule matches the category set.
const DefaultTopic = "Other"

// TopicRule maps raw category-tag prefixes to one human-facing label.
type TopicRule struct {
	Prefixes []string
	Label    string
}

// topicRules is evaluated in order; the first matching rule wins.
var topicRules = []TopicRule{
	{Prefixes: []string{"cs.CV", "eess.IV"}, Label: "Vision"},
	{Prefixes: []string{"cs.CL"}, Label: "Language"},
	{Prefixes: []string{"cs.LG", "stat.ML"}, Label: "Machine Learning"},
	{Prefixes: []string{"cs.AI", "cs.MA"}, Label: "AI"},
	{Prefixes: []string{"cs.RO"}, Label: "Robotics"},
	{Prefixes: []string{"cs.CR"}, Label: "Security"},
	{Prefixes: []string{"cs.DC", "cs.OS", "cs.NI"}, Label: "Systems"},
	{Prefixes: []string{"quant-ph"}, Label: "Quantum"},
	{Prefixes: []string{"q-bio"}, Label: "Biology"},
}

// ClassifyTopic derives exactly one topic label from raw category tags.
// The result depends only on set membership, never on tag ordering.
func ClassifyTopic(categories []string) string {
	for _, rule := range topicRules {
		for _, prefix := range rule.Prefixes {
			for _, tag := range categories {
				if strings.HasPrefix(tag, prefix) {
					return rule.Label
				}
			}
		}
	}
	return DefaultTopic
}
