package handlers

import (
	"net/http"

	"github.com/Dosada05/tabletennis-bracket/brackets"
	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/services"
)

type TournamentHandler struct {
	bracketService   services.BracketService
	standingsService services.StandingsService
}

func NewTournamentHandler(bs services.BracketService, ss services.StandingsService) *TournamentHandler {
	return &TournamentHandler{
		bracketService:   bs,
		standingsService: ss,
	}
}

type registerParticipantsRequest struct {
	Participants []services.ParticipantInput `json:"participants"`
}

type buildBracketRequest struct {
	// Manual maps first-round positions to pre-filled halves.
	Manual map[int]brackets.ManualPairing `json:"manual"`
}

type changeStatusRequest struct {
	Status models.TournamentStatus `json:"status"`
}

// CreateHandler обрабатывает POST /tournaments
// @Summary Create tournament
// @Tags tournaments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tournament body services.CreateTournamentInput true "Tournament settings"
// @Success 201 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.CreateTournament(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /tournaments/{tournamentID}
// @Summary Get tournament
// @Tags tournaments
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ChangeStatusHandler обрабатывает PATCH /tournaments/{tournamentID}/status
func (h *TournamentHandler) ChangeStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input changeStatusRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.ChangeStatus(r.Context(), actor, id, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterParticipantsHandler обрабатывает POST /tournaments/{tournamentID}/participants
// @Summary Register participants
// @Tags tournaments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Router /tournaments/{tournamentID}/participants [post]
func (h *TournamentHandler) RegisterParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input registerParticipantsRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participants, err := h.bracketService.RegisterParticipants(r.Context(), actor, id, input.Participants)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BuildBracketHandler обрабатывает POST /tournaments/{tournamentID}/bracket
// @Summary Build bracket
// @Description Builds the single-elimination bracket once. The body may pre-fill first-round positions.
// @Tags brackets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {object} services.BuildResult
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /tournaments/{tournamentID}/bracket [post]
func (h *TournamentHandler) BuildBracketHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input buildBracketRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	result, err := h.bracketService.Build(r.Context(), actor, id, input.Manual)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracketHandler обрабатывает GET /tournaments/{tournamentID}/bracket
// @Summary Get bracket
// @Tags brackets
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} services.BracketView
// @Failure 404 {object} map[string]string
// @Router /tournaments/{tournamentID}/bracket [get]
func (h *TournamentHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.bracketService.GetBracket(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResyncHandler обрабатывает POST /tournaments/{tournamentID}/bracket/resync
func (h *TournamentHandler) ResyncHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.bracketService.Resync(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetStandingsHandler обрабатывает GET /tournaments/{tournamentID}/standings
// @Summary Final standings
// @Tags brackets
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Router /tournaments/{tournamentID}/standings [get]
func (h *TournamentHandler) GetStandingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.standingsService.GenerateFinalStandings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetStatusHandler обрабатывает GET /tournaments/{tournamentID}/status
func (h *TournamentHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	progress, err := h.standingsService.TournamentStatus(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, progress, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
