package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/ordering"
	"github.com/CrowderSoup/studyboard/services"
)

// WebSocketHandler upgrades owner connections and runs live drag sessions.
type WebSocketHandler struct {
	workspaces *services.Workspaces
	hub        *services.Hub
	log        *log.Logger
	upgrader   websocket.Upgrader
}

func NewWebSocketHandler(workspaces *services.Workspaces, hub *services.Hub, allowedOrigins []string, logger *log.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		workspaces: workspaces,
		hub:        hub,
		log:        logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

type dragEndRequest struct {
	Target *ordering.Target `json:"target"`
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFrom(r)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Error upgrading to WebSocket")
		return
	}

	client := services.NewClient(h.hub, conn, ownerID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)

	h.sendSnapshot(client)
}

func (h *WebSocketHandler) sendSnapshot(c *services.Client) {
	ctx := context.Background()
	if items, err := h.workspaces.Todos(ctx, c.OwnerID); err == nil {
		c.Send(services.NewMessage(services.MessageTodos, items))
	} else {
		h.log.WithError(err).WithField("owner", c.OwnerID).Error("Error loading to-do list")
	}
	if groups, err := h.workspaces.Board(ctx, c.OwnerID); err == nil {
		c.Send(services.NewMessage(services.MessageBoard, groups))
	} else {
		h.log.WithError(err).WithField("owner", c.OwnerID).Error("Error loading board")
	}
	c.Send(services.NewMessage(services.MessageSyncStatus, h.workspaces.SyncStatus(c.OwnerID)))
}

// handleMessage runs one drag step for the sending client. The client id is
// the drag holder, so a closed socket can release its drag.
func (h *WebSocketHandler) handleMessage(c *services.Client, msg services.WebSocketMessage) {
	ctx := context.Background()
	var err error

	switch msg.Type {
	case services.MessageDragStart:
		var d ordering.Draggable
		if err = json.Unmarshal(msg.Data, &d); err == nil {
			err = h.workspaces.DragStart(ctx, c.OwnerID, c.ID, d)
		}
	case services.MessageDragOver:
		var t ordering.Target
		if err = json.Unmarshal(msg.Data, &t); err == nil {
			var preview any
			if preview, err = h.workspaces.DragOver(ctx, c.OwnerID, c.ID, t); err == nil {
				c.Send(services.NewMessage(services.MessagePreview, preview))
			}
		}
	case services.MessageDragEnd:
		var req dragEndRequest
		if len(msg.Data) > 0 {
			err = json.Unmarshal(msg.Data, &req)
		}
		if err == nil {
			_, err = h.workspaces.DragEnd(ctx, c.OwnerID, c.ID, req.Target)
		}
	case services.MessageDragCancel:
		err = h.workspaces.DragCancel(ctx, c.OwnerID, c.ID)
	default:
		h.log.WithField("type", msg.Type).Debug("Ignoring unknown WebSocket message")
		return
	}

	if err != nil {
		h.log.WithError(err).WithFields(log.Fields{"owner": c.OwnerID, "client": c.ID, "type": msg.Type}).Debug("Drag step rejected")
		c.Send(services.NewMessage(services.MessageError, map[string]string{"type": msg.Type, "error": err.Error()}))
	}
}
