package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ariadne-eng/queryengine/model"
)

// uriScheme is the resource scheme the Exposed API names in spec §6:
// engine://{buffer_name}[/{chunk_index}].
const uriScheme = "engine://"

// registerResources registers the buffer-listing resource and the
// per-buffer/per-chunk resource template with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcpsdk.Resource{
		URI:         uriScheme + "buffers",
		Name:        "buffers",
		Description: "List of all loaded buffers",
		MIMEType:    "application/json",
	}, s.handleBuffersResource)

	s.server.AddResourceTemplate(&mcpsdk.ResourceTemplate{
		URITemplate: uriScheme + "{bufferName}",
		Name:        "buffer",
		Description: "A buffer's metadata and full content",
		MIMEType:    "application/json",
	}, s.handleBufferResource)

	s.server.AddResourceTemplate(&mcpsdk.ResourceTemplate{
		URITemplate: uriScheme + "{bufferName}/{chunkIndex}",
		Name:        "chunk",
		Description: "One chunk of a buffer by its document-order index",
		MIMEType:    "application/json",
	}, s.handleChunkResource)
}

func (s *Server) handleBuffersResource(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	buffers, err := s.eng.Store.ListBuffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing buffers: %w", err)
	}

	type bufferInfo struct {
		Name       string `json:"name"`
		ChunkCount int    `json:"chunk_count"`
		ByteSize   int    `json:"byte_size"`
		URI        string `json:"uri"`
	}
	infos := make([]bufferInfo, len(buffers))
	for i, b := range buffers {
		infos[i] = bufferInfo{Name: b.Name, ChunkCount: b.ChunkCount, ByteSize: b.ByteSize, URI: uriScheme + b.Name}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling buffers: %w", err)
	}
	return jsonResourceResult(req.Params.URI, data), nil
}

func (s *Server) handleBufferResource(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	bufferName, _, hasChunk := parseResourceURI(req.Params.URI)
	if bufferName == "" || hasChunk {
		return nil, mcpsdk.ResourceNotFoundError(req.Params.URI)
	}

	buf, err := s.eng.Store.GetBufferByName(ctx, bufferName)
	if err != nil {
		return nil, fmt.Errorf("getting buffer %q: %w", bufferName, err)
	}
	if buf == nil {
		return nil, mcpsdk.ResourceNotFoundError(req.Params.URI)
	}

	data, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling buffer: %w", err)
	}
	return jsonResourceResult(req.Params.URI, data), nil
}

func (s *Server) handleChunkResource(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	bufferName, chunkIndex, hasChunk := parseResourceURI(req.Params.URI)
	if bufferName == "" || !hasChunk {
		return nil, mcpsdk.ResourceNotFoundError(req.Params.URI)
	}

	buf, err := s.eng.Store.GetBufferByName(ctx, bufferName)
	if err != nil {
		return nil, fmt.Errorf("getting buffer %q: %w", bufferName, err)
	}
	if buf == nil {
		return nil, mcpsdk.ResourceNotFoundError(req.Params.URI)
	}

	chunks, err := s.eng.Store.ListChunks(ctx, buf.ID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for buffer %q: %w", bufferName, err)
	}

	var found *model.Chunk
	for i := range chunks {
		if chunks[i].Index == chunkIndex {
			found = &chunks[i]
			break
		}
	}
	if found == nil {
		return nil, mcpsdk.ResourceNotFoundError(req.Params.URI)
	}

	data, err := json.MarshalIndent(found, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling chunk: %w", err)
	}
	return jsonResourceResult(req.Params.URI, data), nil
}

// parseResourceURI splits engine://{buffer_name}[/{chunk_index}] into its
// parts. hasChunk is false when the URI names only a buffer.
func parseResourceURI(uri string) (bufferName string, chunkIndex int, hasChunk bool) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", 0, false
	}
	rest := strings.TrimPrefix(uri, uriScheme)
	if rest == "" || rest == "buffers" {
		return "", 0, false
	}

	parts := strings.SplitN(rest, "/", 2)
	bufferName = parts[0]
	if len(parts) == 1 {
		return bufferName, 0, false
	}

	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return bufferName, 0, false
	}
	return bufferName, idx, true
}

func jsonResourceResult(uri string, data []byte) *mcpsdk.ReadResourceResult {
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}
}
