// Package ingest implements the AIXM/GML streaming ingestion dispatcher:
// a stack-of-nodes event consumer driven by an XML tokenizer, with a
// name-keyed factory table selecting one of a handful of node kinds per
// element and double-dispatching completed children up to their parent.
//
// encoding/xml's struct-tag Decoder.Decode is the right tool when the
// target shape is fixed, but here the element set is open (new AIXM
// feature types, nested ADR condition trees) and an explicit
// per-element node stack with parent/child double dispatch is needed,
// so this package drives the same encoding/xml package one level down,
// via its token stream (Decoder.Token), Go's SAX-equivalent API.
package ingest

import (
	"fmt"
	"sort"

	"adrcore/aerr"
	"adrcore/identifier"
)

// NodeKind classifies how a node accumulates its content: text node,
// link node, structured node, or (for unrecognised element names) an
// ignore node.
type NodeKind int

const (
	KindText NodeKind = iota
	KindLink
	KindStructured
	KindIgnore
)

// Node is implemented by every element handler on the parse stack.
type Node interface {
	Kind() NodeKind
	// OnSubelement integrates a completed child, double-dispatching on
	// the child's concrete kind.
	OnSubelement(name string, child Node, el *aerr.ErrorLogger)
	// OnCharacters accumulates character content for text/structured
	// mixed-content nodes.
	OnCharacters(text string)
	// OnAttributes receives the element's decoded attributes at
	// start_element time.
	OnAttributes(attrs map[string]string, el *aerr.ErrorLogger)
}

// baseNode supplies no-op defaults so concrete node types only
// override what they need.
type baseNode struct{}

func (baseNode) OnSubelement(string, Node, *aerr.ErrorLogger) {}
func (baseNode) OnCharacters(string)                          {}
func (baseNode) OnAttributes(map[string]string, *aerr.ErrorLogger) {}

// TextNode is a leaf carrying character content (e.g. aixm:name).
type TextNode struct {
	baseNode
	Text string
}

func (*TextNode) Kind() NodeKind           { return KindText }
func (n *TextNode) OnCharacters(s string)  { n.Text += s }

// LinkNode is a leaf carrying a UUID extracted from xlink:href.
type LinkNode struct {
	baseNode
	UUID identifier.UUID
}

func (*LinkNode) Kind() NodeKind { return KindLink }

func (n *LinkNode) OnAttributes(attrs map[string]string, el *aerr.ErrorLogger) {
	href, ok := attrs["xlink:href"]
	if !ok {
		return
	}
	n.UUID = identifier.Parse(hrefToUUIDString(href))
	if identifier.IsNil(n.UUID) {
		el.Warnf("link node: unparsable xlink:href %q", href)
	}
}

// hrefToUUIDString extracts the trailing UUID segment of a urn-style
// xlink:href, e.g. "urn:uuid:6e...5a3d" -> "6e...5a3d".
func hrefToUUIDString(href string) string {
	for i := len(href) - 1; i >= 0; i-- {
		if href[i] == ':' {
			return href[i+1:]
		}
	}
	return href
}

// IgnoreNode discards its children but still participates in the stack
// so on_subelement bookkeeping and attribute counting stay correct.
type IgnoreNode struct{ baseNode }

func (*IgnoreNode) Kind() NodeKind { return KindIgnore }

// Factory constructs a fresh node for a given qualified element name.
type Factory func() Node

// nameTable is a sorted (name, factory) table, matched via binary
// search.
type nameTable struct {
	names     []string
	factories []Factory
}

func newNameTable(entries map[string]Factory) *nameTable {
	t := &nameTable{}
	for name, f := range entries {
		t.names = append(t.names, name)
		t.factories = append(t.factories, f)
	}
	idx := make([]int, len(t.names))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return t.names[idx[i]] < t.names[idx[j]] })
	sortedNames := make([]string, len(idx))
	sortedFactories := make([]Factory, len(idx))
	for i, j := range idx {
		sortedNames[i] = t.names[j]
		sortedFactories[i] = t.factories[j]
	}
	t.names, t.factories = sortedNames, sortedFactories
	return t
}

func (t *nameTable) lookup(name string) (Factory, bool) {
	i := sort.SearchStrings(t.names, name)
	if i < len(t.names) && t.names[i] == name {
		return t.factories[i], true
	}
	return nil, false
}

// selfTest verifies the table is sorted and has no duplicate keys, an
// invariant checked once at startup.
func (t *nameTable) selfTest() error {
	for i := 1; i < len(t.names); i++ {
		if t.names[i-1] >= t.names[i] {
			return fmt.Errorf("ingest: name table out of order at %q/%q", t.names[i-1], t.names[i])
		}
	}
	return nil
}
