package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ariadne-eng/queryengine/hybrid"
	"github.com/ariadne-eng/queryengine/store"
)

// Registry holds the fixed set of tools an agent may call during its tool
// loop, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Returns an error on a name collision.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tools[name]
	return exists
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered tool, the shape a Synthesizer's Agent Loop
// wants for its fixed tool set rather than the bare metadata List returns.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		all = append(all, tool)
	}
	return all
}

// List returns metadata for every registered tool.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		metadata = append(metadata, tool.Metadata())
	}
	return metadata
}

// Description renders every tool's metadata for inclusion in an agent's
// system prompt.
func (r *Registry) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var descriptions []string
	for _, tool := range r.tools {
		meta := tool.Metadata()
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]", p.Name, p.ParamType, p.Description, required))
		}
		descriptions = append(descriptions, fmt.Sprintf("Tool: %s\nDescription: %s\nParameters:\n%s",
			meta.Name, meta.Description, strings.Join(params, "\n")))
	}
	return strings.Join(descriptions, "\n\n")
}

// DefaultToolTimeout is the per-call timeout applied to registry tools that
// don't take an explicit one.
const DefaultToolTimeout = 30 // seconds

// WithDefaults builds the registry with the fixed six-tool set from §4.5:
// get_chunks, search, grep_chunks, get_buffer, list_buffers, storage_stats.
func WithDefaults(st *store.Store, searcher *hybrid.Searcher) (*Registry, error) {
	registry := NewRegistry()

	fixed := []Tool{
		NewGetChunksTool(st),
		NewSearchTool(searcher),
		NewGrepChunksTool(st),
		NewGetBufferTool(st),
		NewListBuffersTool(st),
		NewStorageStatsTool(st),
	}

	for _, t := range fixed {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}
	return registry, nil
}
