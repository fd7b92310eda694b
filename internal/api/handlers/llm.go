package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SonianW/MetaPrompter/internal/prompt"
)

// LLMHandler exposes lifecycle operations that work on raw prompt text
// rather than stored prompts. Nothing here is persisted.
type LLMHandler struct {
	lc *prompt.Lifecycle
}

func NewLLMHandler(lc *prompt.Lifecycle) *LLMHandler {
	return &LLMHandler{lc: lc}
}

type templateInfo struct {
	Name      string   `json:"name"`
	Variables []string `json:"variables"`
}

func (h *LLMHandler) Templates(w http.ResponseWriter, r *http.Request) {
	reg := h.lc.Templates()
	var out []templateInfo
	for _, name := range reg.Names() {
		if t, ok := reg.Get(name); ok {
			out = append(out, templateInfo{Name: name, Variables: t.Variables()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": out, "count": len(out)})
}

type runTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}

func (h *LLMHandler) RunTemplate(w http.ResponseWriter, r *http.Request) {
	var req runTemplateRequest
	if !decode(w, r, &req) {
		return
	}

	res := h.lc.GenerateFromTemplate(r.Context(), chi.URLParam(r, "name"), req.Variables)
	writeOutcome(w, res, http.StatusOK, "Template executed successfully",
		map[string]interface{}{"result": res.Text})
}

type compareRequest struct {
	Original  string `json:"original_prompt"`
	Optimized string `json:"optimized_prompt"`
	Task      string `json:"task_description"`
	Model     string `json:"model"`
}

func (h *LLMHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := blankFields(map[string]string{
		"original_prompt":  req.Original,
		"optimized_prompt": req.Optimized,
		"task_description": req.Task,
	}); missing != nil {
		writeValidation(w, missing)
		return
	}

	res := h.lc.ComparePrompts(r.Context(), req.Original, req.Optimized, req.Task, req.Model)
	writeOutcome(w, res, http.StatusOK, "Prompts compared successfully",
		map[string]interface{}{"comparison_result": res.Text})
}

type analyzeRequest struct {
	Prompt   string `json:"prompt"`
	Detailed *bool  `json:"detailed"`
	Model    string `json:"model"`
}

func (h *LLMHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := blankFields(map[string]string{"prompt": req.Prompt}); missing != nil {
		writeValidation(w, missing)
		return
	}
	detailed := req.Detailed == nil || *req.Detailed

	res := h.lc.AnalyzeQuality(r.Context(), req.Prompt, detailed, req.Model)
	writeOutcome(w, res, http.StatusOK, "Prompt analyzed successfully",
		map[string]interface{}{"analysis_result": res.Text})
}

type scoreTextRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// Evaluate runs the scored evaluation template on raw prompt text.
func (h *LLMHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req scoreTextRequest
	if !decode(w, r, &req) {
		return
	}
	if missing := blankFields(map[string]string{"prompt": req.Prompt}); missing != nil {
		writeValidation(w, missing)
		return
	}

	res := h.lc.Evaluate(r.Context(), req.Prompt, req.Model)
	writeOutcome(w, res, http.StatusOK, "Prompt evaluated successfully",
		map[string]interface{}{"evaluation_result": res.Text})
}

func blankFields(fields map[string]string) map[string]string {
	var missing map[string]string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			if missing == nil {
				missing = map[string]string{}
			}
			missing[name] = "must not be blank"
		}
	}
	return missing
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"status":  "error",
		"message": "validation failed",
		"errors":  fields,
	})
}
