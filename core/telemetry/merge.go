package telemetry

import (
	"fmt"

	"github.com/kilianp07/solarcharger/core/store"
)

// MergeWarning reports a payload field that was skipped.
type MergeWarning struct {
	Path   string
	Value  string
	Reason string
}

func (w MergeWarning) Error() string {
	return fmt.Sprintf("received key %q with value %s is not valid: %s", w.Path, w.Value, w.Reason)
}

// Merge writes every scalar leaf of root whose path exists in st. Fields
// that cannot be stored are skipped and reported.
func Merge(st *store.Store, root Node) []MergeWarning {
	var warns []MergeWarning
	mergeInto(st, "", root, &warns)
	return warns
}

func mergeInto(st *store.Store, prefix string, n Node, warns *[]MergeWarning) {
	for _, key := range n.Keys() {
		child, _ := n.Child(key)
		path := prefix + "/" + key
		switch child.Kind() {
		case NodeObject:
			if st.Has(path) {
				*warns = append(*warns, MergeWarning{Path: path, Value: child.Describe(), Reason: "object at value path"})
				continue
			}
			mergeInto(st, path, child, warns)
		case NodeScalar:
			if err := st.Set(path, child.Value()); err != nil {
				*warns = append(*warns, MergeWarning{Path: path, Value: child.Describe(), Reason: "unknown path"})
			}
		default:
			*warns = append(*warns, MergeWarning{Path: path, Value: child.Describe(), Reason: "unsupported value type"})
		}
	}
}
