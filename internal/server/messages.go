package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/flowtree/internal/engine"
	"github.com/roach88/flowtree/internal/ir"
)

func (s *Server) listMessages(c *gin.Context) {
	var (
		msgs []ir.Message
		err  error
	)
	if raw, ok := c.GetQuery("flowId"); ok {
		flow, perr := engine.ParseFlow(raw)
		if perr != nil {
			s.fail(c, perr)
			return
		}
		msgs, err = s.engine.ListFlowMessages(c.Request.Context(), flow)
	} else {
		msgs, err = s.engine.ListMessages(c.Request.Context())
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []ir.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) insertMessage(c *gin.Context) {
	var req InsertMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	flow, err := req.FlowID.Parse()
	if err != nil {
		s.fail(c, err)
		return
	}
	identifier, err := engine.ParseIdentifier(req.Identifier)
	if err != nil {
		s.fail(c, err)
		return
	}

	msg, err := s.engine.InsertMessage(c.Request.Context(), flow, identifier, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, InsertMessageResponse{
		Message: "message inserted",
		Data:    msg,
	})
}

// pathParams parses the :flowId and :identifier route parameters
func (s *Server) pathParams(c *gin.Context) (ir.FlowID, ir.Path, bool) {
	flow, err := engine.ParseFlow(c.Param("flowId"))
	if err != nil {
		s.fail(c, err)
		return 0, nil, false
	}
	identifier, err := engine.ParseIdentifier(c.Param("identifier"))
	if err != nil {
		s.fail(c, err)
		return 0, nil, false
	}
	return flow, identifier, true
}

func (s *Server) getMessage(c *gin.Context) {
	flow, identifier, ok := s.pathParams(c)
	if !ok {
		return
	}
	msg, found, err := s.engine.GetMessage(c.Request.Context(), flow, identifier)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrMessageNotFound, identifier),
			Status: http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) updateMessage(c *gin.Context) {
	flow, old, ok := s.pathParams(c)
	if !ok {
		return
	}
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	upd := engine.MessageUpdate{Content: req.Content}
	if req.Identifier != "" {
		next, err := engine.ParseIdentifier(req.Identifier)
		if err != nil {
			s.fail(c, err)
			return
		}
		upd.Identifier = next
	}

	if err := s.engine.UpdateMessage(c.Request.Context(), flow, old, upd); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "message updated"})
}

func (s *Server) deleteMessage(c *gin.Context) {
	flow, identifier, ok := s.pathParams(c)
	if !ok {
		return
	}
	confirmation, err := s.engine.DeleteMessage(c.Request.Context(), flow, identifier)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteMessageResponse{
		Message:        "message deleted",
		DeletedMessage: confirmation,
	})
}

func (s *Server) deleteMessagesByFlow(c *gin.Context) {
	flow, err := engine.ParseFlow(c.Param("flowId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	n, err := s.engine.DeleteMessagesByFlow(c.Request.Context(), flow)
	if err != nil {
		s.fail(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, DeleteFlowMessagesResponse{
			Message: fmt.Sprintf("no messages found with flowId %s", flow),
		})
		return
	}
	c.JSON(http.StatusOK, DeleteFlowMessagesResponse{
		Message: fmt.Sprintf("deleted %d messages with flowId %s", n, flow),
		Count:   n,
	})
}
