package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// node is a minimal element tree. Names keep the prefix exactly as written
// in the document so mappings such as "content:encoded" or "dc:creator"
// can be matched without namespace resolution.
type node struct {
	name     string
	local    string
	attrs    map[string]string
	text     strings.Builder
	children []*node
}

func parseTree(payload []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	root := &node{name: "#document"}
	stack := []*node{root}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{
				name:  qualified(t.Name),
				local: t.Name.Local,
				attrs: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
				if a.Name.Space != "" {
					n.attrs[qualified(a.Name)] = a.Value
				}
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			name := qualified(t.Name)
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].name == name {
					stack = stack[:i]
					break
				}
			}
		case xml.CharData:
			stack[len(stack)-1].text.Write(t)
		}
	}

	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// matches reports whether a mapping tag refers to this element. An
// unprefixed tag also matches prefixed elements with the same local name.
func (n *node) matches(tag string) bool {
	if n.name == tag {
		return true
	}
	return !strings.Contains(tag, ":") && n.local == tag
}

// findAll returns every descendant matching tag in document order
func (n *node) findAll(tag string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.children {
			if c.matches(tag) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// find returns the first descendant matching tag
func (n *node) find(tag string) *node {
	for _, c := range n.children {
		if c.matches(tag) {
			return c
		}
		if found := c.find(tag); found != nil {
			return found
		}
	}
	return nil
}

// child returns the first direct child matching tag
func (n *node) child(tag string) *node {
	for _, c := range n.children {
		if c.matches(tag) {
			return c
		}
	}
	return nil
}

// innerText concatenates the character data of the subtree
func (n *node) innerText() string {
	if len(n.children) == 0 {
		return strings.TrimSpace(n.text.String())
	}
	var b strings.Builder
	b.WriteString(n.text.String())
	for _, c := range n.children {
		if t := c.innerText(); t != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}

// value returns the element text, or the first non-empty attribute among
// attrs when the element carries no text (Atom links and categories).
func (n *node) value(attrs ...string) string {
	if t := n.innerText(); t != "" {
		return t
	}
	for _, a := range attrs {
		if v := strings.TrimSpace(n.attrs[a]); v != "" {
			return v
		}
	}
	return ""
}
