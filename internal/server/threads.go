package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrGetThreadState    = errors.New("failed to get thread state")
	ErrGetThreadHistory  = errors.New("failed to get thread history")
	ErrResumeThread      = errors.New("failed to resume thread")
	ErrUpdateThreadState = errors.New("failed to update thread state")
)

func (s *Server) getThreadState(c *gin.Context) {
	graphID := c.Param("graphID")
	threadID := c.Param("threadID")

	state, ok, err := s.runtime.GetState(
		c.Request.Context(), graphID, threadID,
	)
	if err != nil {
		abortWithError(c, ErrGetThreadState, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:  "No checkpoints for thread: " + threadID,
			Status: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, StateResponse{
		GraphID:  graphID,
		ThreadID: threadID,
		State:    state,
	})
}

func (s *Server) getThreadHistory(c *gin.Context) {
	graphID := c.Param("graphID")
	threadID := c.Param("threadID")

	history, err := s.runtime.GetStateHistory(
		c.Request.Context(), graphID, threadID,
	)
	if err != nil {
		abortWithError(c, ErrGetThreadHistory, err)
		return
	}

	snapshots := make([]*HistorySnapshot, 0, len(history))
	for _, snap := range history {
		snapshots = append(snapshots, &HistorySnapshot{
			CheckpointID: snap.CheckpointID,
			State:        snap.State,
			NextNode:     snap.NextNode,
			CreatedAt:    snap.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, HistoryResponse{
		GraphID:  graphID,
		ThreadID: threadID,
		History:  snapshots,
		Count:    len(snapshots),
	})
}

func (s *Server) resumeThread(c *gin.Context) {
	graphID := c.Param("graphID")
	threadID := c.Param("threadID")

	var req ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  ErrInvalidJSON.Error() + ": " + err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	res, err := s.runtime.Resume(
		c.Request.Context(), graphID, threadID, req.Update,
	)
	if err != nil {
		abortWithError(c, ErrResumeThread, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) updateThreadState(c *gin.Context) {
	graphID := c.Param("graphID")
	threadID := c.Param("threadID")

	var req UpdateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  ErrInvalidJSON.Error() + ": " + err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	if len(req.Update) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "Update must contain at least one key",
			Status: http.StatusBadRequest,
		})
		return
	}

	err := s.runtime.UpdateState(
		c.Request.Context(), graphID, threadID, req.Update,
	)
	if err != nil {
		abortWithError(c, ErrUpdateThreadState, err)
		return
	}
	c.Status(http.StatusNoContent)
}
