package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/flowtree/internal/engine"
)

func (s *Server) listFlows(c *gin.Context) {
	flows, err := s.engine.ListFlows(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FlowsListResponse{Flows: flows, Count: len(flows)})
}

func (s *Server) insertMainFlow(c *gin.Context) {
	var req InsertMainFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	flow, err := req.FlowID.Parse()
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.engine.InsertMainFlow(c.Request.Context(), flow, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	flowResult(c, res, http.StatusCreated)
}

func (s *Server) deleteMainFlow(c *gin.Context) {
	flow, err := engine.ParseFlow(c.Param("flowId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.engine.DeleteMainFlow(c.Request.Context(), flow)
	if err != nil {
		s.fail(c, err)
		return
	}
	flowResult(c, res, http.StatusOK)
}

func (s *Server) exchangeFlows(c *gin.Context) {
	var req ExchangeFlowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := req.FlowIDA.Parse()
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := req.FlowIDB.Parse()
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.engine.ExchangeFlows(c.Request.Context(), a, b)
	if err != nil {
		s.fail(c, err)
		return
	}
	flowResult(c, res, http.StatusOK)
}

func (s *Server) verify(c *gin.Context) {
	violations, err := s.engine.Verify(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{OK: len(violations) == 0, Violations: violations})
}
