package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/flowtree/internal/engine"
)

var (
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrMessageNotFound = errors.New("message not found")
)

// statusFor maps engine error codes to HTTP statuses
func statusFor(code engine.Code) int {
	switch code {
	case engine.CodeInvalidIdentifier, engine.CodeRootFlowInsert, engine.CodeCrossParentMove:
		return http.StatusBadRequest
	case engine.CodeFlowNotFound:
		return http.StatusNotFound
	case engine.CodeFlowAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := engine.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
	}
	c.JSON(status, ErrorResponse{
		Error:  err.Error(),
		Code:   code,
		Status: status,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
		Status: http.StatusBadRequest,
	})
}

// flowResult writes a FlowResult with okStatus on success and the status of
// its code otherwise
func flowResult(c *gin.Context, res engine.FlowResult, okStatus int) {
	if res.Success {
		c.JSON(okStatus, res)
		return
	}
	c.JSON(statusFor(res.Code), res)
}
