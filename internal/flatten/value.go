// Package flatten converts the nested configuration/summary structures a run
// carries into single-level dot-path keys, and merges flattened runs into a
// tabular view.
package flatten

// Kind classifies a decoded JSON-like value so traversal is exhaustive:
// mappings descend, everything else (scalars and sequences) is a leaf.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
)

// KindOf classifies a value produced by decoding the service's JSON
// payloads. Sequences are deliberately leaves: a list cell is shown as one
// opaque value, never expanded into index columns.
func KindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return KindMapping
	case []any:
		return KindSequence
	default:
		return KindScalar
	}
}

type absent struct{}

func (absent) String() string { return "-" }

// Absent marks a table cell whose column another run produced but this run
// did not. It is distinct from a logged null.
var Absent = absent{}
