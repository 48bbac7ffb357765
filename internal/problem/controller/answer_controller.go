package controller

import (
	commonmw "riddlehub/internal/common/http/middleware"
	"riddlehub/internal/problem/service"
	"riddlehub/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AnswerController handles answer submission HTTP endpoints.
type AnswerController struct {
	answerService *service.AnswerService
}

// NewAnswerController creates a new AnswerController.
func NewAnswerController(answerService *service.AnswerService) *AnswerController {
	return &AnswerController{answerService: answerService}
}

// Submit handles an answer submission for a problem.
func (h *AnswerController) Submit(c *gin.Context) {
	userID, ok := commonmw.UserID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	problemID, ok := parseProblemID(c)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	result, err := h.answerService.SubmitAnswer(c.Request.Context(), userID, problemID, req.Answer)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, SubmitAnswerResponse{
		Result:          result.Message,
		Correct:         result.Correct,
		AlreadyAnswered: result.AlreadyAnswered,
	})
}

// SubmitAnswerRequest defines the answer submission payload.
type SubmitAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// SubmitAnswerResponse defines the answer submission result payload.
type SubmitAnswerResponse struct {
	Result          string `json:"result"`
	Correct         bool   `json:"correct"`
	AlreadyAnswered bool   `json:"already_answered"`
}
