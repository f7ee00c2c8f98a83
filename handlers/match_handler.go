package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/tabletennis-bracket/models"
	"github.com/Dosada05/tabletennis-bracket/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type recordSetRequest struct {
	PointsA int `json:"points_a"`
	PointsB int `json:"points_b"`
}

type submitSetsRequest struct {
	Sets []models.SetScore `json:"sets"`
}

type livePointsRequest struct {
	Side  int `json:"side"`
	Delta int `json:"delta"`
}

type walkoverRequest struct {
	WinnerSide int `json:"winner_side"`
}

type assignRefereeRequest struct {
	RefereeID int `json:"referee_id"`
}

type assignRefereesRequest struct {
	Assignments []services.RefereeAssignment `json:"assignments"`
}

func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, view *services.MatchView, err error) {
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler обрабатывает GET /matches/{matchID}
// @Summary Get match
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.matchService.GetMatch(r.Context(), id)
	h.respond(w, r, view, err)
}

// RecordSetHandler обрабатывает PUT /matches/{matchID}/sets/{setIndex}
// @Summary Record one set
// @Description Saves the points of one set. Rewriting a saved set needs override=true and the organizer role.
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param matchID path int true "Match ID"
// @Param setIndex path int true "Set index, starting at 1"
// @Param override query bool false "Rewrite a saved set"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /matches/{matchID}/sets/{setIndex} [put]
func (h *MatchHandler) RecordSetHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	setIndex, err := getIDFromURL(r, "setIndex")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	override, err := queryBool(r, "override")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input recordSetRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.matchService.RecordSet(r.Context(), actor, id, setIndex, input.PointsA, input.PointsB, override)
	h.respond(w, r, view, err)
}

// SubmitSetsHandler обрабатывает PUT /matches/{matchID}/sets
func (h *MatchHandler) SubmitSetsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	override, err := queryBool(r, "override")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input submitSetsRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.matchService.SubmitSets(r.Context(), actor, id, input.Sets, override)
	h.respond(w, r, view, err)
}

// LivePointsHandler обрабатывает POST /matches/{matchID}/points
func (h *MatchHandler) LivePointsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input livePointsRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.matchService.AdjustLivePoints(r.Context(), actor, id, input.Side, input.Delta)
	h.respond(w, r, view, err)
}

// ConfirmHandler обрабатывает POST /matches/{matchID}/confirm
// @Summary Confirm match result
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Router /matches/{matchID}/confirm [post]
func (h *MatchHandler) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.matchService.Confirm(r.Context(), actor, id)
	h.respond(w, r, view, err)
}

// WalkoverHandler обрабатывает POST /matches/{matchID}/walkover
func (h *MatchHandler) WalkoverHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input walkoverRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.matchService.DeclareWinner(r.Context(), actor, id, input.WinnerSide)
	h.respond(w, r, view, err)
}

// AssignRefereeHandler обрабатывает PUT /matches/{matchID}/referee
func (h *MatchHandler) AssignRefereeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input assignRefereeRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.matchService.AssignReferee(r.Context(), actor, id, input.RefereeID)
	h.respond(w, r, view, err)
}

// AssignRefereesHandler обрабатывает PUT /tournaments/{tournamentID}/referees/assignments
// @Summary Assign referees to several matches at once
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tournaments/{tournamentID}/referees/assignments [put]
func (h *MatchHandler) AssignRefereesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input assignRefereesRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	views, err := h.matchService.AssignReferees(r.Context(), actor, id, input.Assignments)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": views}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AssignedMatchesHandler обрабатывает GET /referees/me/matches
// @Summary List matches assigned to the current referee
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param all query bool false "Include finished matches"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /referees/me/matches [get]
func (h *MatchHandler) AssignedMatchesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	includeFinished := false
	if raw := r.URL.Query().Get("all"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid value %q for query parameter all", raw))
			return
		}
		includeFinished = v
	}

	views, err := h.matchService.AssignedMatches(r.Context(), actor, includeFinished)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": views}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
