package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/services"
)

// TodoHandler serves the owner's to-do list.
type TodoHandler struct {
	workspaces *services.Workspaces
	log        *log.Logger
}

func NewTodoHandler(workspaces *services.Workspaces, logger *log.Logger) *TodoHandler {
	return &TodoHandler{workspaces: workspaces, log: logger}
}

// List returns the to-do list. Anonymous callers get an empty list.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.workspaces.Todos(r.Context(), ownerFrom(r))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": items})
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.workspaces.AddTodo(r.Context(), ownerFrom(r), req.Title)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": item})
}

// Rename updates the title.
func (h *TodoHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.workspaces.RenameTodo(r.Context(), ownerFrom(r), mux.Vars(r)["id"], req.Title)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": item})
}

func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	item, err := h.workspaces.ToggleTodo(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": item})
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.workspaces.DeleteTodo(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder drops activeId onto overId and returns the new list.
func (h *TodoHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveID string `json:"activeId"`
		OverID   string `json:"overId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := h.workspaces.ReorderTodos(r.Context(), ownerFrom(r), req.ActiveID, req.OverID)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": items})
}
