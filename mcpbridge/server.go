// Package mcpbridge exposes the Engine over the Model Context Protocol:
// buffers and chunks as addressable resources (engine://{buffer_name}
// [/{chunk_index}], spec §6) and two callable MCP tools, query (the full
// pipeline) and search (a bare search), so an external MCP client (an
// editor, an agent harness) can drive the engine. The Synthesizer's fixed
// tool set (spec §4.5) is not exposed over MCP.
//
// Grounded on the teacher's mcp package (consumer side: discovering and
// wrapping a remote server's tools) generalized to the server side using
// the pack's MCP server library and the sercha-cli example's resource/tool
// registration shape (internal/adapters/driving/mcp/{server,resources,tools}.go).
package mcpbridge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ariadne-eng/queryengine/engine"
)

// Version is the MCP server version this bridge reports in its
// implementation handshake.
const Version = "0.1.0"

// Server is the MCP server adapter wrapping one Engine.
type Server struct {
	eng    *engine.Engine
	server *mcpsdk.Server
}

// NewServer builds an MCP server over eng, registering the resource and
// tool surfaces.
func NewServer(eng *engine.Engine) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("mcpbridge: engine is required")
	}

	impl := &mcpsdk.Implementation{Name: "queryengine", Version: Version}
	s := &Server{eng: eng, server: mcpsdk.NewServer(impl, nil)}

	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio. It blocks until ctx is cancelled
// or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on addr. It blocks until ctx is
// cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(func(_ *http.Request) *mcpsdk.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
