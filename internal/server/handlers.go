package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/livepoll/internal/auth"
	"github.com/MarcoPoloResearchLab/livepoll/internal/polls"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequestPayload struct {
	Password string `json:"password"`
}

type loginResponsePayload struct {
	Token string `json:"token"`
}

type verifyResponsePayload struct {
	Valid bool `json:"valid"`
}

type createPollRequestPayload struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Password string `json:"password"`
}

type pollStateRequestPayload struct {
	PollID string `json:"poll_id"`
	State  string `json:"state"`
}

type pollResponsePayload struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	AccessCode      string  `json:"access_code"`
	Slug            *string `json:"slug"`
	State           string  `json:"state"`
	ResultsRevealed bool    `json:"results_revealed"`
}

type answerOptionRequestPayload struct {
	OptionText string `json:"option_text"`
}

type createQuestionRequestPayload struct {
	PollID        string                       `json:"poll_id"`
	QuestionText  string                       `json:"question_text"`
	ChartType     string                       `json:"chart_type"`
	AnswerOptions []answerOptionRequestPayload `json:"answer_options"`
}

type answerOptionResponsePayload struct {
	ID          string `json:"id"`
	QuestionID  string `json:"question_id"`
	OptionText  string `json:"option_text"`
	OptionOrder int    `json:"option_order"`
}

type questionResponsePayload struct {
	ID            string                        `json:"id"`
	PollID        string                        `json:"poll_id"`
	QuestionText  string                        `json:"question_text"`
	QuestionOrder int                           `json:"question_order"`
	ChartType     string                        `json:"chart_type"`
	CreatedAt     time.Time                     `json:"created_at"`
	AnswerOptions []answerOptionResponsePayload `json:"answer_options"`
}

type createSessionRequestPayload struct {
	PollID       string `json:"poll_id"`
	SessionToken string `json:"session_token"`
}

type sessionResponsePayload struct {
	SessionID string `json:"session_id"`
}

type submitResponseRequestPayload struct {
	SessionToken   string `json:"session_token"`
	QuestionID     string `json:"question_id"`
	AnswerOptionID string `json:"answer_option_id"`
}

func (h *httpHandler) handleAdminLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidJSON})
		return
	}
	if strings.TrimSpace(request.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
		return
	}

	token, err := h.admin.Login(c.Request.Context(), request.Password)
	if errors.Is(err, auth.ErrInvalidAdminSecret) {
		h.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{Token: token})
}

func (h *httpHandler) handleAdminVerify(c *gin.Context) {
	err := h.admin.VerifyAdminCredential(c.GetHeader("Authorization"))
	if err != nil {
		h.logger.Debug("admin credential not valid",
			zap.String("reason", string(auth.FailureReason(err))))
	}
	c.JSON(http.StatusOK, verifyResponsePayload{Valid: err == nil})
}

func (h *httpHandler) handleCreatePoll(c *gin.Context) {
	var request createPollRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidJSON})
		return
	}

	poll, err := h.polls.CreatePoll(c.Request.Context(), polls.CreatePollInput{
		Title:    request.Title,
		Slug:     request.Slug,
		Password: request.Password,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create poll")
		return
	}

	c.JSON(http.StatusCreated, newPollResponse(poll))
}

func (h *httpHandler) handlePollState(c *gin.Context) {
	var request pollStateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidJSON})
		return
	}

	poll, err := h.polls.TransitionPoll(c.Request.Context(), request.PollID, polls.PollState(request.State))
	if err != nil {
		h.respondError(c, err, "Failed to update poll")
		return
	}

	c.JSON(http.StatusOK, newPollResponse(poll))
}

func (h *httpHandler) handleCreateQuestion(c *gin.Context) {
	var request createQuestionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidJSON})
		return
	}

	input := polls.CreateQuestionInput{
		PollID:       request.PollID,
		QuestionText: request.QuestionText,
		ChartType:    request.ChartType,
	}
	for _, option := range request.AnswerOptions {
		input.AnswerOptions = append(input.AnswerOptions, polls.AnswerOptionInput{OptionText: option.OptionText})
	}

	question, err := h.polls.CreateQuestion(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, "Failed to create question")
		return
	}

	response := questionResponsePayload{
		ID:            question.ID,
		PollID:        question.PollID,
		QuestionText:  question.QuestionText,
		QuestionOrder: question.QuestionOrder,
		ChartType:     string(question.ChartType),
		CreatedAt:     question.CreatedAt,
		AnswerOptions: make([]answerOptionResponsePayload, 0, len(question.AnswerOptions)),
	}
	for _, option := range question.AnswerOptions {
		response.AnswerOptions = append(response.AnswerOptions, answerOptionResponsePayload{
			ID:          option.ID,
			QuestionID:  option.QuestionID,
			OptionText:  option.OptionText,
			OptionOrder: option.OptionOrder,
		})
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var request createSessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidJSON})
		return
	}

	outcome, err := h.polls.CreateSession(c.Request.Context(), polls.CreateSessionInput{
		PollID:       request.PollID,
		SessionToken: request.SessionToken,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create session")
		return
	}

	status := http.StatusOK
	if outcome.Created {
		status = http.StatusCreated
	}
	c.JSON(status, sessionResponsePayload{SessionID: outcome.SessionID})
}

func (h *httpHandler) handleSubmitResponse(c *gin.Context) {
	var request submitResponseRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidJSON})
		return
	}

	_, err := h.polls.SubmitResponse(c.Request.Context(), polls.SubmitResponseInput{
		SessionToken:   request.SessionToken,
		QuestionID:     request.QuestionID,
		AnswerOptionID: request.AnswerOptionID,
	})
	if err != nil {
		h.respondError(c, err, "Failed to save response")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func newPollResponse(poll polls.Poll) pollResponsePayload {
	return pollResponsePayload{
		ID:              poll.ID,
		Title:           poll.Title,
		AccessCode:      poll.AccessCode,
		Slug:            poll.Slug,
		State:           string(poll.State),
		ResultsRevealed: poll.ResultsRevealed,
	}
}
