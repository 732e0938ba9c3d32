package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// StateProvider serves authoritative room snapshots
type StateProvider interface {
	Snapshot(ctx context.Context, leagueID string) (models.Room, error)
	LeagueIDs() []string
}

// RoomSummary is one entry of GET /api/rooms
type RoomSummary struct {
	LeagueID      string `json:"leagueId"`
	Status        string `json:"status"`
	CurrentRound  int    `json:"currentRound"`
	CurrentPick   int    `json:"currentPick"`
	CurrentPicker int    `json:"currentPicker"`
	TeamCount     int    `json:"teamCount"`
	TotalRounds   int    `json:"totalRounds"`
	PicksMade     int    `json:"picksMade"`
}

// StateHandler handles HTTP requests for room state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetRoomState handles GET /api/rooms/{leagueID}/state. The body has the
// same shape as a DRAFT_STATUS payload so clients can seed their replica with it.
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	leagueID := r.PathValue("leagueID")
	if leagueID == "" {
		http.Error(w, "league id is required", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.Snapshot(r.Context(), leagueID)
	if err != nil {
		if code, ok := coordinator.ReasonOf(err); ok && code == events.ReasonUnknownRoom {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("league_id", leagueID).Msg("failed to get room state")
		http.Error(w, "failed to get room state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, room.StatusPayload(state))
}

// HandleListRooms handles GET /api/rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	ids := h.stateProvider.LeagueIDs()
	out := make([]RoomSummary, 0, len(ids))
	for _, id := range ids {
		s, err := h.stateProvider.Snapshot(r.Context(), id)
		if err != nil {
			// removed between listing and snapshot
			continue
		}
		out = append(out, RoomSummary{
			LeagueID:      s.LeagueID,
			Status:        string(s.Status),
			CurrentRound:  s.CurrentRound,
			CurrentPick:   s.CurrentPick,
			CurrentPicker: s.CurrentPicker,
			TeamCount:     s.TeamCount,
			TotalRounds:   s.TotalRounds,
			PicksMade:     len(s.Picks),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", h.HandleListRooms)
	mux.HandleFunc("GET /api/rooms/{leagueID}/state", h.HandleGetRoomState)
}
