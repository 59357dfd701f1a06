package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kilianp07/solarcharger/core/store"
)

var (
	// ErrEmptyPayload is returned for messages without content.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrInvalidJSON is returned when the payload is not a JSON object.
	ErrInvalidJSON = errors.New("payload is not a valid JSON object")
)

// NodeKind tells how a payload node must be interpreted.
type NodeKind int

const (
	// NodeScalar holds a string, integer or float.
	NodeScalar NodeKind = iota
	// NodeObject holds named children.
	NodeObject
	// NodeUnsupported holds booleans, null and arrays.
	NodeUnsupported
)

// Node is one element of a decoded telemetry payload.
type Node struct {
	kind     NodeKind
	value    store.Value
	children map[string]Node
	keys     []string
	raw      string
}

func (n Node) Kind() NodeKind { return n.kind }

// Value returns the scalar of a NodeScalar.
func (n Node) Value() store.Value { return n.value }

// Keys returns the child names of an object in sorted order.
func (n Node) Keys() []string { return n.keys }

// Child returns the named child of an object node.
func (n Node) Child(key string) (Node, bool) {
	if n.kind != NodeObject {
		return Node{}, false
	}
	c, ok := n.children[key]
	return c, ok
}

// Lookup walks keys from n.
func (n Node) Lookup(keys ...string) (Node, bool) {
	cur := n
	for _, k := range keys {
		next, ok := cur.Child(k)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// Has reports whether the key chain exists, whatever the leaf holds.
func (n Node) Has(keys ...string) bool {
	_, ok := n.Lookup(keys...)
	return ok
}

// Describe renders the node for log messages.
func (n Node) Describe() string {
	switch n.kind {
	case NodeScalar:
		return n.value.String()
	case NodeObject:
		return "{" + strings.Join(n.keys, ",") + "}"
	default:
		return n.raw
	}
}

// Parse decodes a raw payload into a Node tree. The root must be an object.
func Parse(payload []byte) (Node, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Node{}, ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Node{}, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	if _, ok := v.(map[string]any); !ok {
		return Node{}, fmt.Errorf("%w: root is %T", ErrInvalidJSON, v)
	}
	return build(v), nil
}

func build(v any) Node {
	switch t := v.(type) {
	case map[string]any:
		n := Node{kind: NodeObject, children: make(map[string]Node, len(t))}
		for k, c := range t {
			n.children[k] = build(c)
			n.keys = append(n.keys, k)
		}
		sort.Strings(n.keys)
		return n
	case string:
		return Node{kind: NodeScalar, value: store.String(t)}
	case json.Number:
		return Node{kind: NodeScalar, value: number(t)}
	case nil:
		return Node{kind: NodeUnsupported, raw: "null"}
	case bool:
		return Node{kind: NodeUnsupported, raw: fmt.Sprintf("%t", t)}
	default:
		return Node{kind: NodeUnsupported, raw: fmt.Sprintf("%v", t)}
	}
}

// number keeps integer literals as integers.
func number(n json.Number) store.Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return store.Int(i)
		}
	}
	f, err := n.Float64()
	if err != nil {
		return store.String(s)
	}
	return store.Float(f)
}
