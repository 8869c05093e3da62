package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type messageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequest(err))
		return nil, false
	}

	return body, true
}

func (s *Server) ingestCallEvents(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	result, err := s.Calls.Ingest(c.Request.Context(), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "call events ingested", Data: result})
}

func (s *Server) listCallEvents(c *gin.Context) {
	events, err := s.Calls.ListCallEvents(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (s *Server) callLog(c *gin.Context) {
	rows, err := s.Calls.CallLog(c.Request.Context(), c.Query("search"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (s *Server) listJourneys(c *gin.Context) {
	events, err := s.Calls.Journeys(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (s *Server) clearData(c *gin.Context) {
	err := s.Calls.Clear(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "all collections cleared"})
}

func (s *Server) ingestAgentStatuses(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	count, err := s.AgentStatus.IngestAgentStatuses(c.Request.Context(), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "agent statuses ingested", Data: gin.H{"accepted": count}})
}

func (s *Server) listAgentStatuses(c *gin.Context) {
	rows, err := s.AgentStatus.AgentStatuses(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (s *Server) ingestProfileAvailabilities(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}

	count, err := s.AgentStatus.IngestProfileAvailabilities(c.Request.Context(), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "profile availabilities ingested", Data: gin.H{"accepted": count}})
}

func (s *Server) listProfileAvailabilities(c *gin.Context) {
	rows, err := s.AgentStatus.ProfileAvailabilities(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}
