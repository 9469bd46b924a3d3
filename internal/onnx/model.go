//go:build !wasm

package onnx

import (
	"slices"

	"github.com/born-ml/graphrt/internal/onnx/operators"
)

// InputNames returns the graph inputs a caller must supply.
func (g *CompiledGraph) InputNames() []string {
	return append([]string(nil), g.inputNames...)
}

// OptionalInputNames returns the graph inputs backed by an initializer.
func (g *CompiledGraph) OptionalInputNames() []string {
	return append([]string(nil), g.optionalInputs...)
}

// OutputNames returns the graph outputs in declaration order.
func (g *CompiledGraph) OutputNames() []string {
	return append([]string(nil), g.outputNames...)
}

// OpsetVersion returns the resolved version of a domain, 0 when it resolves to the latest.
func (g *CompiledGraph) OpsetVersion(domain string) int64 {
	return g.opset[operators.NormalizeDomain(domain)]
}

// OpsetVersions returns the resolved version per domain.
func (g *CompiledGraph) OpsetVersions() map[string]int64 {
	out := make(map[string]int64, len(g.opset))
	for domain, v := range g.opset {
		out[domain] = v
	}
	return out
}

// Metadata returns model metadata as key-value pairs.
// A graph compiled without a model has no metadata.
func (g *CompiledGraph) Metadata() map[string]string {
	meta := make(map[string]string)
	if g.model == nil {
		return meta
	}
	for _, prop := range g.model.MetadataProps {
		meta[prop.Key] = prop.Value
	}
	meta["producer_name"] = g.model.ProducerName
	meta["producer_version"] = g.model.ProducerVersion
	meta["domain"] = g.model.Domain
	return meta
}

func (g *CompiledGraph) isGraphInput(name string) bool {
	s, ok := g.index[name]
	if !ok {
		return false
	}
	return g.slots[s].Kind == SlotInput || slices.Contains(g.optionalInputs, name)
}
