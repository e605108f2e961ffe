package schema

import "fbsdump/internal/meta"

// FallbackPositional assigns slots in declaration order: the k-th
// parameter after the builder gets slot k. The slot numbers are a
// plausible ordering, not the serialized ones, so the outcome is marked
// low confidence.
func FallbackPositional(params []meta.Param) Outcome {
	out := Outcome{
		Kind:       OutcomeFallback,
		State:      StateIdle,
		Mapping:    make(FieldMapping),
		Confidence: ConfidenceLow,
	}
	for k := 0; k+1 < len(params); k++ {
		out.Mapping[k] = k + 2
	}
	out.Declared = len(out.Mapping)
	out.Collected = len(out.Mapping)
	return out
}
