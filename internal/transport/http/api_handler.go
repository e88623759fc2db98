package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"quiz-night-service/internal/answerkey"
	"quiz-night-service/internal/app"
	"quiz-night-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// APIHandler exposes the quiz use cases as JSON endpoints.
type APIHandler struct {
	service *app.QuizService
	log     *zap.Logger
}

func NewAPIHandler(service *app.QuizService, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{service: service, log: log}
}

type teamNamePayload struct {
	TeamName string `json:"teamName"`
}

type submitPayload struct {
	TeamName string          `json:"teamName"`
	Answers  json.RawMessage `json:"answers"`
	Round    json.RawMessage `json:"round"`
}

type roundPayload struct {
	Round  json.RawMessage `json:"round"`
	Closed json.RawMessage `json:"closed"`
}

type answerKeyPayload struct {
	Round          json.RawMessage `json:"round"`
	CorrectAnswers json.RawMessage `json:"correctAnswers"`
}

type answerKeyQuestionPayload struct {
	Round    json.RawMessage `json:"round"`
	Question json.RawMessage `json:"question"`
	Answer   json.RawMessage `json:"answer"`
}

type heartbeatPayload struct {
	Token      string `json:"token"`
	PageHidden *bool  `json:"pageHidden"`
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Removed string `json:"removed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) RegisterTeam(w http.ResponseWriter, r *http.Request) {
	var body teamNamePayload
	if !decodeBody(w, r, &body) {
		return
	}
	name, err := h.service.RegisterTeam(r.Context(), body.TeamName)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamNamePayload{TeamName: name})
}

func (h *APIHandler) Teams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.Teams(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *APIHandler) GetOrAssignToken(w http.ResponseWriter, r *http.Request) {
	var body teamNamePayload
	if !decodeBody(w, r, &body) {
		return
	}
	token, err := h.service.GetOrAssignToken(r.Context(), body.TeamName)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) Rejoin(w http.ResponseWriter, r *http.Request) {
	name, err := h.service.Rejoin(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamNamePayload{TeamName: name})
}

func (h *APIHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var body heartbeatPayload
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.service.Heartbeat(r.Context(), body.Token, body.PageHidden); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *APIHandler) ActiveTeams(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.ActiveTeams(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (h *APIHandler) RemoveTeam(w http.ResponseWriter, r *http.Request) {
	var body teamNamePayload
	if !decodeBody(w, r, &body) {
		return
	}
	removed, err := h.service.RemoveTeam(r.Context(), body.TeamName)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true, Removed: removed})
}

func (h *APIHandler) RoundState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.RoundState(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SetRoundState applies whichever of round and closed are well-formed.
func (h *APIHandler) SetRoundState(w http.ResponseWriter, r *http.Request) {
	var body roundPayload
	if !decodeBody(w, r, &body) {
		return
	}
	var round *int
	if n, ok := domain.ParseInt(body.Round); ok {
		round = &n
	}
	var closed *bool
	switch string(body.Closed) {
	case "true":
		v := true
		closed = &v
	case "false":
		v := false
		closed = &v
	}
	state, err := h.service.SetRoundState(r.Context(), round, closed)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var body submitPayload
	if !decodeBody(w, r, &body) {
		return
	}
	round, ok := domain.ParseInt(body.Round)
	if !ok {
		h.fail(w, domain.ErrBadPayload)
		return
	}
	var answers domain.Answers
	if len(body.Answers) > 0 {
		if err := json.Unmarshal(body.Answers, &answers); err != nil {
			h.fail(w, domain.ErrBadPayload)
			return
		}
	}
	if _, err := h.service.SubmitAnswers(r.Context(), body.TeamName, answers, round); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *APIHandler) Answers(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.Answers(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *APIHandler) SaveAnswerKey(w http.ResponseWriter, r *http.Request) {
	var body answerKeyPayload
	if !decodeBody(w, r, &body) {
		return
	}
	round, ok := domain.ParseInt(body.Round)
	if !ok {
		h.fail(w, domain.ErrBadPayload)
		return
	}
	if err := h.service.SaveAnswerKey(r.Context(), round, answerkey.Parse(body.CorrectAnswers)); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *APIHandler) UpdateAnswerKeyQuestion(w http.ResponseWriter, r *http.Request) {
	var body answerKeyQuestionPayload
	if !decodeBody(w, r, &body) {
		return
	}
	round, okRound := domain.ParseInt(body.Round)
	question, okQuestion := domain.ParseInt(body.Question)
	if !okRound || !okQuestion {
		h.fail(w, domain.ErrBadPayload)
		return
	}
	err := h.service.UpdateAnswerKeyQuestion(r.Context(), round, question, domain.ScalarText(body.Answer))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *APIHandler) AnswerKey(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.AnswerKey(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *APIHandler) SaveScores(w http.ResponseWriter, r *http.Request) {
	var table domain.ScoreTable
	if !decodeBody(w, r, &table) {
		return
	}
	if err := h.service.SaveScores(r.Context(), table); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *APIHandler) Scores(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.Scores(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *APIHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetSession(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// fail maps a use-case error to its HTTP status.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRoundNotOpen):
		return http.StatusLocked
	case errors.Is(err, domain.ErrDuplicateSubmission), errors.Is(err, domain.ErrTeamExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON body into dst, answering 400 itself when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrBadPayload.Error())
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrBadPayload.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
