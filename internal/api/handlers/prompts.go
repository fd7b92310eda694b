package handlers

import (
	"net/http"

	"github.com/SonianW/MetaPrompter/internal/auth"
	"github.com/SonianW/MetaPrompter/internal/catalog"
	"github.com/SonianW/MetaPrompter/internal/models"
	"github.com/SonianW/MetaPrompter/internal/store"
)

type PromptHandler struct {
	svc *catalog.Service
}

func NewPromptHandler(svc *catalog.Service) *PromptHandler {
	return &PromptHandler{svc: svc}
}

type createPromptRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Tags        string `json:"tags"`
	IsPublic    bool   `json:"is_public"`
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.svc.Create(r.Context(), catalog.CreateInput{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// List returns every prompt matching the query filters. mine=true narrows it
// to the caller's prompts and public=true to public ones.
func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.PromptFilter{
		Category:   q.Get("category"),
		Search:     q.Get("search"),
		PublicOnly: q.Get("public") == "true",
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	if q.Get("mine") == "true" {
		user := auth.UserIDFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "mine=true requires a bearer token")
			return
		}
		f.UserID = user
	}

	prompts, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": prompts, "count": len(prompts)})
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updatePromptRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Tags        *string `json:"tags"`
	IsPublic    *bool   `json:"is_public"`
}

func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updatePromptRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.svc.Update(r.Context(), id, catalog.UpdateInput{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type generateRequest struct {
	Requirement string `json:"requirement"`
	Model       string `json:"model"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *PromptHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.svc.Generate(r.Context(), catalog.GenerateInput{
		Requirement: req.Requirement,
		Model:       req.Model,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutcome(w, out.Result, http.StatusCreated, "Prompt generated successfully",
		map[string]interface{}{"prompt": out.Prompt})
}

type optimizeRequest struct {
	Model string `json:"model"`
}

func (h *PromptHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req optimizeRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.svc.Optimize(r.Context(), id, req.Model)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutcome(w, out.Result, http.StatusOK, "Prompt optimized successfully", map[string]interface{}{
		"original_content":  out.Original,
		"optimized_content": out.Text,
	})
}

type evaluateRequest struct {
	Detailed *bool  `json:"detailed"`
	Model    string `json:"model"`
}

func (h *PromptHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if !decode(w, r, &req) {
		return
	}
	detailed := req.Detailed == nil || *req.Detailed

	out, err := h.svc.Evaluate(r.Context(), id, detailed, req.Model)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOutcome(w, out.Result, http.StatusOK, "Prompt evaluated successfully",
		map[string]interface{}{"evaluation_result": out.Text})
}

func (h *PromptHandler) Use(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	st, err := h.svc.Use(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"message":    "Prompt used successfully",
		"statistics": st,
	})
}

type scoreRequest struct {
	Score *float64 `json:"score"`
}

func (h *PromptHandler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Score == nil {
		writeServiceError(w, r, &catalog.ValidationError{Fields: map[string]string{"score": "Score is required"}})
		return
	}

	st, err := h.svc.Score(r.Context(), id, *req.Score)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"message":       "Prompt scored successfully",
		"average_score": st.AverageScore(),
		"statistics":    st,
	})
}

func (h *PromptHandler) Public(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.svc.ListPublic(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": prompts, "count": len(prompts)})
}

func (h *PromptHandler) Histories(w http.ResponseWriter, r *http.Request) {
	promptID, ok := queryID(w, r, "prompt_id")
	if !ok {
		return
	}
	op := models.OperationType(r.URL.Query().Get("operation_type"))
	if op != "" && !op.Valid() {
		writeError(w, http.StatusBadRequest, "invalid operation_type")
		return
	}

	entries, err := h.svc.History(r.Context(), store.HistoryFilter{
		PromptID:  promptID,
		Operation: op,
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"histories": entries, "count": len(entries)})
}

func (h *PromptHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	promptID, ok := queryID(w, r, "prompt_id")
	if !ok {
		return
	}

	st, err := h.svc.Statistics(r.Context(), promptID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"statistics": st, "count": len(st)})
}
