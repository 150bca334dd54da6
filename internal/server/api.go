package server

import (
	"time"

	"github.com/dnw3/synapse/graph"
)

type (
	// ErrorResponse is the JSON body of any failed request
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}

	// HealthResponse reports service liveness
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// GraphListResponse lists the registered graph ids
	GraphListResponse struct {
		Graphs []string `json:"graphs"`
		Count  int      `json:"count"`
	}

	// GraphResponse describes a single registered graph
	GraphResponse struct {
		ID    string   `json:"id"`
		Entry string   `json:"entry"`
		Nodes []string `json:"nodes"`
	}

	// InvokeRequest starts or resumes a thread of a graph. When ThreadID
	// is empty a fresh thread id is generated
	InvokeRequest struct {
		ThreadID string       `json:"thread_id,omitempty"`
		Input    graph.Values `json:"input,omitempty"`
	}

	// ResumeRequest resumes an interrupted thread, optionally merging an
	// update into its state first
	ResumeRequest struct {
		Update graph.Values `json:"update,omitempty"`
	}

	// UpdateStateRequest merges an update into a parked thread's state
	UpdateStateRequest struct {
		Update graph.Values `json:"update"`
	}

	// StateResponse returns the latest persisted state of a thread
	StateResponse struct {
		GraphID  string       `json:"graph_id"`
		ThreadID string       `json:"thread_id"`
		State    graph.Values `json:"state"`
	}

	// HistorySnapshot is one entry of a thread's checkpoint history
	HistorySnapshot struct {
		CheckpointID string       `json:"checkpoint_id"`
		State        graph.Values `json:"state"`
		NextNode     string       `json:"next_node,omitempty"`
		CreatedAt    time.Time    `json:"created_at"`
	}

	// HistoryResponse returns a thread's checkpoint history, oldest first
	HistoryResponse struct {
		GraphID  string             `json:"graph_id"`
		ThreadID string             `json:"thread_id"`
		History  []*HistorySnapshot `json:"history"`
		Count    int                `json:"count"`
	}

	// SubscribeRequest is the WebSocket message that selects which thread
	// events a client receives
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription filters events by thread and event type. Empty
	// fields match everything
	ClientSubscription struct {
		GraphID    string   `json:"graph_id,omitempty"`
		ThreadID   string   `json:"thread_id,omitempty"`
		EventTypes []string `json:"event_types,omitempty"`
	}
)
