package prompt

import (
	"sort"
	"sync"
)

// Names of the templates every registry starts with.
const (
	TemplateGeneration   = "prompt_generation"
	TemplateOptimization = "prompt_optimization"
	TemplateEvaluation   = "prompt_evaluation"
)

// Registry maps template names to templates. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns a registry holding the built-in templates.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, t := range builtinTemplates() {
		r.Put(t.Name(), t)
	}
	return r
}

func NewEmptyRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Get returns the template registered under name. An unknown name is not an
// error; callers decide how to report it.
func (r *Registry) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Put inserts or replaces a template.
func (r *Registry) Put(name string, t *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[name] = t
}

// Update replaces an existing template and reports whether name was present.
func (r *Registry) Update(name string, t *Template) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[name]; !ok {
		return false
	}
	r.templates[name] = t
	return true
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinTemplates() []*Template {
	return []*Template{
		NewTemplate(TemplateGeneration,
			System("You are a professional LLM prompt engineer. Write a high-quality prompt for the user's requirement.\n"+
				"Follow these rules strictly:\n"+
				"1. The prompt must be specific and clear, and steer the LLM towards high-quality answers\n"+
				"2. Avoid vague or generic language\n"+
				"3. Give the prompt a sound structure without semantic ambiguity\n"+
				"4. The prompt may include examples that help the LLM understand the task\n"+
				"5. Return only the prompt, without any extra explanation, markup or formatting"),
			Human("Write a high-quality prompt for the following requirement:\n{{requirement}}"),
		),
		NewTemplate(TemplateOptimization,
			System("You are a professional LLM prompt optimizer. Optimize the prompt following these rules strictly:\n"+
				"1. Return only the optimized prompt text\n"+
				"2. Do not add any extra explanation, markup or formatting\n"+
				"3. Do not include phrases such as \"Optimized prompt\"\n"+
				"4. The optimized prompt must be more specific and clearer, and better steer the LLM towards high-quality answers"),
			Human("Optimize the following prompt:\n{{prompt}}"),
		),
		NewTemplate(TemplateEvaluation,
			System("You are a professional LLM prompt evaluator. Assess and score the prompt against prompt quality standards."),
			Human("Evaluate the following prompt:\n{{prompt}}\n\n"+
				"Criteria: clarity, specificity, guidance, completeness. Maximum score is 10."),
		),
	}
}
