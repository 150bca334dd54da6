// Package server exposes the graph runtime over HTTP and WebSocket. Graphs
// are invoked and resumed through JSON endpoints; thread progress streams
// to WebSocket subscribers
package server
