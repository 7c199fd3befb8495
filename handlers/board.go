package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/ordering"
	"github.com/CrowderSoup/studyboard/services"
)

// BoardHandler serves the owner's kanban board.
type BoardHandler struct {
	workspaces *services.Workspaces
	log        *log.Logger
}

func NewBoardHandler(workspaces *services.Workspaces, logger *log.Logger) *BoardHandler {
	return &BoardHandler{workspaces: workspaces, log: logger}
}

// Get returns the groups with their cards. Anonymous callers get an empty board.
func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	groups, err := h.workspaces.Board(r.Context(), ownerFrom(r))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": groups})
}

func (h *BoardHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Accent string `json:"accent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.workspaces.AddGroup(r.Context(), ownerFrom(r), req.Title, req.Accent)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": g})
}

func (h *BoardHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.workspaces.RenameGroup(r.Context(), ownerFrom(r), mux.Vars(r)["id"], req.Title)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": g})
}

// DeleteGroup removes a group together with its cards.
func (h *BoardHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.workspaces.RemoveGroup(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		fail(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) MoveGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.workspaces.MoveGroup(r.Context(), ownerFrom(r), req.From, req.To); err != nil {
		fail(w, h.log, err)
		return
	}
	h.Get(w, r)
}

func (h *BoardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID string `json:"groupId"`
		services.NewCard
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.workspaces.AddCard(r.Context(), ownerFrom(r), req.GroupID, req.NewCard)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": card})
}

// ShiftCard moves a card to the neighbouring group, direction "left" or "right".
func (h *BoardHandler) ShiftCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction ordering.Direction `json:"direction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.workspaces.ShiftCard(r.Context(), ownerFrom(r), mux.Vars(r)["id"], req.Direction); err != nil {
		fail(w, h.log, err)
		return
	}
	h.Get(w, r)
}

type dropRequest struct {
	Draggable ordering.Draggable `json:"draggable"`
	Target    ordering.Target    `json:"target"`
}

// Drop performs a complete drag in one request.
func (h *BoardHandler) Drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	commit, err := h.workspaces.Drop(r.Context(), ownerFrom(r), "http:"+r.RemoteAddr, req.Draggable, req.Target)
	if err != nil {
		fail(w, h.log, err)
		return
	}
	groups, err := h.workspaces.Board(r.Context(), ownerFrom(r))
	if err != nil {
		fail(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "commit": commit, "data": groups})
}

// SyncStatus reports the persistence state of every scope the owner wrote to.
func (h *BoardHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": h.workspaces.SyncStatus(ownerFrom(r))})
}
