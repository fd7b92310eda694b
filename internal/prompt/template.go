package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/SonianW/MetaPrompter/internal/llm"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// MessageTemplate is one turn of a chat template.
type MessageTemplate struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) MessageTemplate {
	return MessageTemplate{Role: llm.RoleSystem, Content: content}
}

func Human(content string) MessageTemplate {
	return MessageTemplate{Role: llm.RoleUser, Content: content}
}

// Template is an immutable list of chat turns with {{variable}} placeholders.
type Template struct {
	name      string
	messages  []MessageTemplate
	variables []string
}

func NewTemplate(name string, messages ...MessageTemplate) *Template {
	msgs := make([]MessageTemplate, len(messages))
	copy(msgs, messages)

	var all strings.Builder
	for _, m := range msgs {
		all.WriteString(m.Content)
		all.WriteString(" ")
	}

	return &Template{
		name:      name,
		messages:  msgs,
		variables: ExtractVariables(all.String()),
	}
}

func (t *Template) Name() string { return t.name }

// Variables lists the placeholder names in order of first appearance.
func (t *Template) Variables() []string {
	return append([]string(nil), t.variables...)
}

func (t *Template) Messages() []MessageTemplate {
	return append([]MessageTemplate(nil), t.messages...)
}

// Format renders every turn with vars. All placeholders must be supplied.
func (t *Template) Format(vars map[string]string) ([]llm.Message, error) {
	out := make([]llm.Message, len(t.messages))
	for i, m := range t.messages {
		content, err := Render(m.Content, vars)
		if err != nil {
			return nil, fmt.Errorf("template %s, %s message: %w", t.name, m.Role, err)
		}
		out[i] = llm.Message{Role: m.Role, Content: content}
	}
	return out, nil
}

// Render replaces {{variable}} placeholders in the template with values from vars.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	result := variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	})

	return result, nil
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range ExtractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
