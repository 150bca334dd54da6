package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	ErrGetGraph    = errors.New("failed to get graph")
	ErrInvokeGraph = errors.New("failed to invoke graph")
)

func (s *Server) listGraphs(c *gin.Context) {
	ids := s.runtime.GraphIDs()
	c.JSON(http.StatusOK, GraphListResponse{
		Graphs: ids,
		Count:  len(ids),
	})
}

// getGraph describes a registered graph. With ?format=mermaid or
// ?format=dot the response is a plain-text diagram instead
func (s *Server) getGraph(c *gin.Context) {
	graphID := c.Param("graphID")
	g, err := s.runtime.Graph(graphID)
	if err != nil {
		abortWithError(c, ErrGetGraph, err)
		return
	}

	switch c.Query("format") {
	case "mermaid":
		c.String(http.StatusOK, g.Mermaid())
	case "dot":
		c.String(http.StatusOK, g.DOT())
	default:
		c.JSON(http.StatusOK, GraphResponse{
			ID:    graphID,
			Entry: g.EntryPoint(),
			Nodes: g.NodeNames(),
		})
	}
}

func (s *Server) invokeGraph(c *gin.Context) {
	graphID := c.Param("graphID")

	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  ErrInvalidJSON.Error() + ": " + err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	res, err := s.runtime.Invoke(
		c.Request.Context(), graphID, threadID, req.Input,
	)
	if err != nil {
		abortWithError(c, ErrInvokeGraph, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
