package handlers

import (
	"net/http"

	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/services"
)

type TeamHandler struct {
	teamService  services.TeamService
	draftService services.DraftService
}

func NewTeamHandler(ts services.TeamService, ds services.DraftService) *TeamHandler {
	return &TeamHandler{
		teamService:  ts,
		draftService: ds,
	}
}

type createTeamRequest struct {
	Name string `json:"name"`
}

func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.CreateTeam(r.Context(), req.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// PIN отдаётся один раз при создании; дальше он в ответы не попадает.
	response := jsonResponse{"team": team, "pin": team.PIN}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamService.ListTeams(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"teams": teams}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) RenameTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req createTeamRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.teamService.RenameTeam(r.Context(), teamID, req.Name); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) RegeneratePIN(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pin, err := h.teamService.RegeneratePIN(r.Context(), teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"pin": pin}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.teamService.DeleteTeam(r.Context(), teamID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type playerRequest struct {
	Name      string  `json:"name"`
	IsCaptain bool    `json:"is_captain"`
	Rating    float64 `json:"rating"`
}

func (h *TeamHandler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req playerRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.teamService.AddPlayer(r.Context(), &models.Player{
		Name:      req.Name,
		TeamID:    teamID,
		IsCaptain: req.IsCaptain,
		Rating:    req.Rating,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req playerRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.teamService.UpdatePlayer(r.Context(), &models.Player{
		ID:        playerID,
		Name:      req.Name,
		IsCaptain: req.IsCaptain,
		Rating:    req.Rating,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.teamService.RemovePlayer(r.Context(), playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftRequest struct {
	Method     string `json:"method"`
	TeamSize   int    `json:"team_size"`
	PlayerIDs  []int  `json:"player_ids"`
	NamePrefix string `json:"name_prefix,omitempty"`
}

// PerformDraft godoc
// @Summary Жеребьёвка mêlée-составов
// @Description Формирует временные команды заданного размера из пула игроков
// @Description методом balance или snake. Остаток пула возвращается в
// @Description leftover_player_ids.
// @Tags draft
// @Accept json
// @Produce json
// @Param input body draftRequest true "Параметры жеребьёвки"
// @Success 201 {object} services.DraftResult
// @Router /draft [post]
func (h *TeamHandler) PerformDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.draftService.PerformDraft(r.Context(), services.DraftInput{
		Method:     services.DraftMethod(req.Method),
		TeamSize:   req.TeamSize,
		PlayerIDs:  req.PlayerIDs,
		NamePrefix: req.NamePrefix,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{
		"teams":               result.Teams,
		"leftover_player_ids": result.LeftoverPlayerIDs,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) TeardownDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.draftService.TeardownDraft(r.Context()); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
