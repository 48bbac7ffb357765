package controller

import (
	"strconv"
	"time"

	commonmw "riddlehub/internal/common/http/middleware"
	"riddlehub/internal/problem/repository"
	"riddlehub/internal/problem/service"
	pkgerrors "riddlehub/pkg/errors"
	"riddlehub/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemController handles problem lifecycle HTTP endpoints.
type ProblemController struct {
	problemService *service.ProblemService
}

// NewProblemController creates a new ProblemController.
func NewProblemController(problemService *service.ProblemService) *ProblemController {
	return &ProblemController{problemService: problemService}
}

// Create handles problem creation.
func (h *ProblemController) Create(c *gin.Context) {
	userID, ok := commonmw.UserID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	var req ProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	problem, err := h.problemService.CreateProblem(c.Request.Context(), service.ProblemInput{
		AuthorID: userID,
		Type:     req.Type,
		Question: req.Question,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toProblemResponse(problem))
}

// Update handles problem update by its owner.
func (h *ProblemController) Update(c *gin.Context) {
	userID, ok := commonmw.UserID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	problemID, ok := parseProblemID(c)
	if !ok {
		return
	}

	var req ProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	problem, err := h.problemService.UpdateProblem(c.Request.Context(), problemID, service.ProblemInput{
		AuthorID: userID,
		Type:     req.Type,
		Question: req.Question,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toProblemResponse(problem))
}

// Get handles a problem query with the requester's answered flag. A missing
// problem yields an empty object, not an error.
func (h *ProblemController) Get(c *gin.Context) {
	userID, ok := commonmw.UserID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	problemID, ok := parseProblemID(c)
	if !ok {
		return
	}

	item, err := h.problemService.GetProblem(c.Request.Context(), userID, problemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if item.ID == 0 {
		response.Success(c, struct{}{})
		return
	}

	response.Success(c, toProblemWithAnsweredResponse(item))
}

// Delete handles problem deletion by its owner.
func (h *ProblemController) Delete(c *gin.Context) {
	userID, ok := commonmw.UserID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	problemID, ok := parseProblemID(c)
	if !ok {
		return
	}

	if err := h.problemService.DeleteProblem(c.Request.Context(), userID, problemID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "Delete success", nil)
}

// List handles the filtered problem listing.
func (h *ProblemController) List(c *gin.Context) {
	userID, ok := commonmw.UserID(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	filter := repository.ListFilter{Type: c.Query("type")}
	if raw := c.Query("answered"); raw != "" {
		answered, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "Invalid answered filter")
			return
		}
		filter.Answered = &answered
	}

	items, err := h.problemService.ListProblems(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	list := make([]ProblemWithAnsweredResponse, 0, len(items))
	for _, item := range items {
		list = append(list, toProblemWithAnsweredResponse(item))
	}
	response.Success(c, ListProblemsResponse{Items: list})
}

func parseProblemID(c *gin.Context) (int64, bool) {
	problemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || problemID <= 0 {
		response.ErrorWithCode(c, pkgerrors.InvalidParams, "Invalid problem id")
		return 0, false
	}
	return problemID, true
}

// ProblemRequest defines the problem creation and update payload.
type ProblemRequest struct {
	Type     string `json:"type" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// ProblemResponse defines the problem payload.
type ProblemResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	AuthorID  string `json:"author_id"`
	Question  string `json:"question"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ProblemWithAnsweredResponse adds the requester's answered flag.
type ProblemWithAnsweredResponse struct {
	ProblemResponse
	Answered bool `json:"answered"`
}

// ListProblemsResponse defines the list payload.
type ListProblemsResponse struct {
	Items []ProblemWithAnsweredResponse `json:"items"`
}

func toProblemResponse(problem repository.Problem) ProblemResponse {
	resp := ProblemResponse{
		ID:       problem.ID,
		Type:     problem.Type,
		AuthorID: problem.AuthorID,
		Question: problem.Question,
	}
	if !problem.CreatedAt.IsZero() {
		resp.CreatedAt = problem.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !problem.UpdatedAt.IsZero() {
		resp.UpdatedAt = problem.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toProblemWithAnsweredResponse(item repository.ProblemWithAnswered) ProblemWithAnsweredResponse {
	return ProblemWithAnsweredResponse{
		ProblemResponse: toProblemResponse(item.Problem),
		Answered:        item.Answered,
	}
}
