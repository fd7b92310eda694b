package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/SonianW/MetaPrompter/internal/llm"
	"github.com/SonianW/MetaPrompter/internal/metrics"
)

// MaxOptimizedLength caps optimized prompts, in characters.
const MaxOptimizedLength = 500

var (
	errEmptyCompletion = errors.New("model returned an empty response")
	errNoClient        = errors.New("no LLM client available")
)

// Lifecycle runs the LLM-backed operations on prompt text. No method returns
// a Go error; failures are reported through Result.
type Lifecycle struct {
	templates *Registry
	clients   *llm.Provider
}

func NewLifecycle(templates *Registry, clients *llm.Provider) *Lifecycle {
	return &Lifecycle{templates: templates, clients: clients}
}

func (s *Lifecycle) Templates() *Registry { return s.templates }

// Generate writes a new prompt for a free-text requirement.
func (s *Lifecycle) Generate(ctx context.Context, requirement, model string) Result {
	return s.finish("generate", s.runTemplate(ctx, "generate prompt", TemplateGeneration, model,
		map[string]string{"requirement": requirement}))
}

// GenerateFromTemplate runs any registered template with the default model.
func (s *Lifecycle) GenerateFromTemplate(ctx context.Context, name string, vars map[string]string) Result {
	return s.finish("generate_from_template", s.runTemplate(ctx, "generate from template", name, "", vars))
}

// Optimize rewrites prompt. Degenerate model output (blank, "none", "null")
// yields the original prompt, so a successful result is never blank.
func (s *Lifecycle) Optimize(ctx context.Context, prompt, model string) Result {
	res := s.runTemplate(ctx, "optimize prompt", TemplateOptimization, model,
		map[string]string{"prompt": prompt})
	raw := res.Text
	if !res.OK() {
		if !errors.Is(res.Err, errEmptyCompletion) {
			return s.finish("optimize", res)
		}
		raw = ""
	}

	text, fellBack := cleanOptimized(prompt, raw)
	if fellBack {
		metrics.OptimizationFallbacks.Inc()
		slog.Warn("optimization produced no usable text, keeping original", "raw", raw)
	}
	return s.finish("optimize", success(text))
}

// Evaluate asks the model for a quality report with a score out of 10. The
// score is not parsed.
func (s *Lifecycle) Evaluate(ctx context.Context, prompt, model string) Result {
	return s.finish("evaluate", s.runTemplate(ctx, "evaluate prompt", TemplateEvaluation, model,
		map[string]string{"prompt": prompt}))
}

// AnalyzeQuality sends a one-off instruction without going through the
// registry. detailed selects the five-point rubric over a short verdict.
func (s *Lifecycle) AnalyzeQuality(ctx context.Context, prompt string, detailed bool, model string) Result {
	var instruction string
	if detailed {
		instruction = "You are a professional LLM prompt analyst. Analyse the quality of the following prompt in detail.\n" +
			"Prompt: " + prompt + "\n\n" +
			"Cover the following aspects:\n" +
			"1. Clarity: is the prompt clearly expressed and easy to understand\n" +
			"2. Specificity: is the prompt specific enough, avoiding vague wording\n" +
			"3. Guidance: does the prompt effectively steer the LLM towards high-quality answers\n" +
			"4. Completeness: does the prompt contain all information needed for the task\n" +
			"5. Suggestions: concrete improvements for the weaknesses found"
	} else {
		instruction = "You are a professional LLM prompt analyst. Briefly analyse the quality of the following prompt.\n" +
			"Prompt: " + prompt + "\n\n" +
			"Give an overall verdict and the main suggestions."
	}
	return s.finish("analyze", s.ask(ctx, "analyze prompt quality", model, instruction))
}

// ComparePrompts asks for a comparative analysis of two prompts on a task.
func (s *Lifecycle) ComparePrompts(ctx context.Context, original, optimized, task, model string) Result {
	instruction := "You are a professional LLM prompt evaluator. Compare how well the following two prompts accomplish a specific task.\n" +
		"Task: " + task + "\n\n" +
		"Original prompt: " + original + "\n\n" +
		"Optimized prompt: " + optimized + "\n\n" +
		"Compare them on clarity, specificity, guidance and completeness, and give a detailed analysis."
	return s.finish("compare", s.ask(ctx, "compare prompts", model, instruction))
}

func (s *Lifecycle) runTemplate(ctx context.Context, op, name, model string, vars map[string]string) Result {
	t, ok := s.templates.Get(name)
	if !ok {
		slog.Error("template not found", "operation", op, "template", name)
		return Result{
			Text: fmt.Sprintf("template not found: %s", name),
			Kind: KindTemplateNotFound,
			Err:  fmt.Errorf("template %q not registered", name),
		}
	}

	client, ok := s.clients.ClientFor(model)
	if !ok {
		return Result{Text: unavailableText, Kind: KindUnavailable, Err: errNoClient}
	}

	out, err := NewChain(t, client).Invoke(ctx, vars)
	return s.completion(op, out, err)
}

func (s *Lifecycle) ask(ctx context.Context, op, model, instruction string) Result {
	client, ok := s.clients.ClientFor(model)
	if !ok {
		return Result{Text: unavailableText, Kind: KindUnavailable, Err: errNoClient}
	}

	out, err := llm.Ask(ctx, client, instruction)
	return s.completion(op, out, err)
}

func (s *Lifecycle) completion(op, out string, err error) Result {
	if err != nil {
		slog.Error(op+" failed", "error", err)
		return Result{Text: fmt.Sprintf("%s failed: %v", op, err), Kind: KindInvocationFailed, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		slog.Error(op+" failed", "error", errEmptyCompletion)
		return Result{Text: fmt.Sprintf("%s failed: %v", op, errEmptyCompletion), Kind: KindInvocationFailed, Err: errEmptyCompletion}
	}
	return success(out)
}

func (s *Lifecycle) finish(op string, res Result) Result {
	metrics.LifecycleOperations.WithLabelValues(op, res.Kind.String()).Inc()
	return res
}

// cleanOptimized trims raw, caps it at MaxOptimizedLength characters and
// falls back to original when nothing usable is left.
func cleanOptimized(original, raw string) (string, bool) {
	out := strings.TrimSpace(raw)
	if utf8.RuneCountInString(out) > MaxOptimizedLength {
		out = strings.TrimSpace(string([]rune(out)[:MaxOptimizedLength]))
	}
	if out == "" || strings.EqualFold(out, "none") || strings.EqualFold(out, "null") {
		return original, true
	}
	return out, false
}
