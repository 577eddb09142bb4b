package handlers

import (
	"io"
	"net/http"

	"github.com/pfc-club/petanque-platform/models"
	"github.com/pfc-club/petanque-platform/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type activationRequest struct {
	TeamID          int    `json:"team_id"`
	PIN             string `json:"pin"`
	PlayerIDs       []int  `json:"player_ids,omitempty"`
	ProposedCourtID *int   `json:"proposed_court_id,omitempty"`
}

// GetMatch godoc
// @Summary Получить матч
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} models.Match
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Activate godoc
// @Summary Активация матча командой по PIN
// @Description Первая команда инициирует матч, вторая подтверждает. После
// @Description подтверждения матч получает площадку или встаёт в очередь.
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "ID матча"
// @Param input body activationRequest true "PIN команды и заявленный состав"
// @Success 200 {object} models.Match
// @Router /matches/{matchID}/activate [post]
func (h *MatchHandler) Activate(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req activationRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input := services.ActivationInput{
		TeamID:          req.TeamID,
		PIN:             req.PIN,
		PlayerIDs:       req.PlayerIDs,
		ProposedCourtID: req.ProposedCourtID,
	}

	// Одна ручка на обе стороны активации: по статусу матча понятно,
	// инициирует команда или подтверждает.
	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	switch match.Status {
	case models.MatchStatusPending:
		match, err = h.matchService.Initiate(r.Context(), matchID, input)
	default:
		match, err = h.matchService.ValidateAndActivate(r.Context(), matchID, input)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitResultRequest struct {
	TeamID     int     `json:"team_id"`
	PIN        string  `json:"pin"`
	Team1Score int     `json:"team1_score"`
	Team2Score int     `json:"team2_score"`
	Notes      *string `json:"notes,omitempty"`
}

// SubmitResult godoc
// @Summary Подать счёт матча
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "ID матча"
// @Param input body submitResultRequest true "Счёт и PIN подающей команды"
// @Success 200 {object} models.Match
// @Router /matches/{matchID}/result [post]
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req submitResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SubmitResult(r.Context(), matchID, services.ResultInput{
		TeamID:     req.TeamID,
		PIN:        req.PIN,
		Team1Score: req.Team1Score,
		Team2Score: req.Team2Score,
		Notes:      req.Notes,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type confirmResultRequest struct {
	TeamID int    `json:"team_id"`
	PIN    string `json:"pin"`
	Agree  bool   `json:"agree"`
}

// ConfirmResult godoc
// @Summary Подтвердить или оспорить поданный счёт
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "ID матча"
// @Param input body confirmResultRequest true "Решение соперника"
// @Success 200 {object} models.Match
// @Router /matches/{matchID}/confirm [post]
func (h *MatchHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req confirmResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ConfirmResult(r.Context(), matchID, req.TeamID, req.PIN, req.Agree)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadEvidence godoc
// @Summary Приложить фото финального счёта
// @Tags matches
// @Accept mpfd
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} models.MatchResult
// @Router /matches/{matchID}/evidence [post]
func (h *MatchHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// 10MB на фото достаточно.
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := getFormInt(r, "team_id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pin := r.FormValue("pin")

	file, header, err := r.FormFile("evidence")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	result, err := h.matchService.AttachEvidence(r.Context(), matchID, teamID, pin,
		header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetResult godoc
// @Summary Поданный результат матча
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} models.MatchResult
// @Router /matches/{matchID}/result [get]
func (h *MatchHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.matchService.GetResult(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelMatch godoc
// @Summary Снять матч (административно)
// @Tags matches
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 200 {object} models.Match
// @Router /matches/{matchID} [delete]
func (h *MatchHandler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.CancelMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
