package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/models"
)

// TournamentGetter checks that a tournament exists before a room is opened.
type TournamentGetter interface {
	GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type WebSocketHandler struct {
	hub         *brackets.Hub
	tournaments TournamentGetter
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; "*" allows any
// origin.
func NewWebSocketHandler(hub *brackets.Hub, tournaments TournamentGetter, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		tournaments: tournaments,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWs обрабатывает WebSocket запросы для конкретного турнира.
// Клиент должен подключаться к /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if h.tournaments != nil {
		if _, err := h.tournaments.GetTournament(r.Context(), tournamentID); err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту
		h.log.Warn("websocket upgrade failed", zap.Int("tournament_id", tournamentID), zap.Error(err))
		return
	}

	roomID := brackets.TournamentRoom(tournamentID)
	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: roomID,
	}
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.log.Debug("websocket client joined", zap.String("room", roomID))
}
