// Package astutil wraps the tree-sitter C grammar with the typed view of
// function bodies the graph builders consume: function lookup, statement
// classification and field access for control constructs.
package astutil

import (
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// File is a parsed C translation unit.
type File struct {
	src  []byte
	tree *sitter.Tree
}

// ParseFile reads and parses a C source file.
func ParseFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Parse(src), nil
}

// Parse parses C source held in memory.
func Parse(src []byte) *File {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree := parser.Parse(nil, src)
	return &File{src: src, tree: tree}
}

// Close releases the underlying tree-sitter tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
	}
}

// Functions returns the names of all function definitions in source order.
func (f *File) Functions() []string {
	var names []string
	walk(f.tree.RootNode(), func(n *sitter.Node) bool {
		if n.Type() == "function_definition" {
			if name := functionName(n, f.src); name != "" {
				names = append(names, name)
			}
			return false
		}
		return true
	})
	return names
}

// Function locates the function_definition node for name.
func (f *File) Function(name string) (*Stmt, bool) {
	var found *sitter.Node
	walk(f.tree.RootNode(), func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == "function_definition" {
			if functionName(n, f.src) == name {
				found = n
			}
			return false
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	return &Stmt{n: found, src: f.src}, true
}

// FunctionBody locates the compound_statement body of the named function.
func (f *File) FunctionBody(name string) (*Stmt, bool) {
	fn, ok := f.Function(name)
	if !ok {
		return nil, false
	}
	body := fn.n.ChildByFieldName("body")
	if body == nil {
		// Fall back to the first compound statement below the definition.
		walk(fn.n, func(n *sitter.Node) bool {
			if body == nil && n.Type() == "compound_statement" {
				body = n
			}
			return body == nil
		})
	}
	if body == nil {
		return nil, false
	}
	return &Stmt{n: body, src: f.src}, true
}

// walk visits n and, when fn returns true, its named children.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

// functionName digs the declared identifier out of a function_definition.
func functionName(n *sitter.Node, src []byte) string {
	decl := n.ChildByFieldName("declarator")
	for decl != nil {
		switch decl.Type() {
		case "identifier":
			return text(decl, src)
		case "function_declarator", "pointer_declarator", "parenthesized_declarator":
			decl = decl.ChildByFieldName("declarator")
			if decl == nil {
				return ""
			}
		default:
			// Unwrap one level and retry; gives up on exotic declarators.
			next := decl.ChildByFieldName("declarator")
			if next == nil {
				return ""
			}
			decl = next
		}
	}
	return ""
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start >= uint32(len(src)) || end > uint32(len(src)) {
		return ""
	}
	return strings.TrimSpace(string(src[start:end]))
}
