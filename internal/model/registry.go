// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultModelID is the model selected when nothing else is configured.
const DefaultModelID = "llama3.1"

// =============================================================================
// DESCRIPTOR TYPE
// =============================================================================

// Descriptor describes a selectable model. Descriptors are immutable values.
type Descriptor struct {
	// ID is the model identifier used in API calls
	ID string `json:"id" toml:"id"`

	// Name is the human-readable display name
	Name string `json:"name" toml:"name"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description" toml:"description"`

	// ContextLength is the context window size in tokens
	ContextLength int `json:"context_length" toml:"context_length"`
}

// DisplayName returns Name, falling back to ID.
func (d Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// ContextString returns a formatted context window string.
func (d Descriptor) ContextString() string {
	switch {
	case d.ContextLength >= 1000000:
		return fmt.Sprintf("%.1fM tokens", float64(d.ContextLength)/1000000)
	case d.ContextLength >= 1000:
		return fmt.Sprintf("%dK tokens", d.ContextLength/1000)
	case d.ContextLength > 0:
		return fmt.Sprintf("%d tokens", d.ContextLength)
	default:
		return "unknown"
	}
}

// CapabilitiesString returns a comma-separated list of inferred capabilities.
func (d Descriptor) CapabilitiesString() string {
	caps := []string{}

	if d.ContextLength >= 100000 {
		caps = append(caps, "Long context")
	} else if d.ContextLength >= 32000 {
		caps = append(caps, "Extended context")
	}

	if strings.Contains(strings.ToLower(d.Name), "code") ||
		strings.Contains(strings.ToLower(d.ID), "coder") {
		caps = append(caps, "Code optimized")
	}

	if len(caps) == 0 {
		return "General purpose"
	}
	return strings.Join(caps, ", ")
}

// =============================================================================
// BUILT-IN MODELS
// =============================================================================

// builtinModels are well-known models served by local inference servers.
var builtinModels = []Descriptor{
	{ID: "llama3", Name: "Llama 3", ContextLength: 8192, Description: "Meta's versatile open-source model"},
	{ID: "llama3.1", Name: "Llama 3.1", ContextLength: 128000, Description: "Extended context Llama 3"},
	{ID: "qwen2.5-coder", Name: "Qwen 2.5 Coder", ContextLength: 32768, Description: "Optimized for code generation"},
	{ID: "codellama", Name: "Code Llama", ContextLength: 16384, Description: "Meta's code-focused model"},
	{ID: "deepseek-coder", Name: "DeepSeek Coder", ContextLength: 16384, Description: "Strong code understanding"},
	{ID: "mistral", Name: "Mistral", ContextLength: 32768, Description: "Fast and efficient general purpose"},
	{ID: "mixtral", Name: "Mixtral 8x7B", ContextLength: 32768, Description: "MoE for complex reasoning"},
	{ID: "phi3", Name: "Phi-3", ContextLength: 4096, Description: "Microsoft's compact efficient model"},
	{ID: "gemma2", Name: "Gemma 2", ContextLength: 8192, Description: "Google's lightweight model"},
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is a static catalog of model descriptors keyed by id.
// It is built once at startup and never mutated afterwards, so lookups
// need no locking.
type Registry struct {
	byID map[string]Descriptor
	ids  []string
}

// NewRegistry builds a registry from descs. Later entries with the same id
// replace earlier ones; entries without an id are skipped.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.ID == "" {
			continue
		}
		r.byID[d.ID] = d
	}
	r.ids = make([]string, 0, len(r.byID))
	for id := range r.byID {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r
}

// DefaultRegistry returns a registry containing the built-in models followed
// by extra, which may override built-ins by id.
func DefaultRegistry(extra ...Descriptor) *Registry {
	all := make([]Descriptor, 0, len(builtinModels)+len(extra))
	all = append(all, builtinModels...)
	all = append(all, extra...)
	return NewRegistry(all...)
}

// Lookup returns the descriptor for id. Absent ids report false.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// List returns all descriptors sorted by id.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns all ids in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Next returns the id following id in sorted order, wrapping around.
// An unknown id yields the entry that sorts after it.
func (r *Registry) Next(id string) (Descriptor, bool) {
	if len(r.ids) == 0 {
		return Descriptor{}, false
	}
	i := sort.SearchStrings(r.ids, id)
	if i < len(r.ids) && r.ids[i] == id {
		i++
	}
	return r.byID[r.ids[i%len(r.ids)]], true
}
