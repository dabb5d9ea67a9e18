// Package export serialises built dependence graphs to JSON for human
// consumption and to msgpack for compact on-disk storage.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/oUaTEnCi/tsar/pkg/pdg"
)

// magic identifies the msgpack container format.
const magic = "TSARPDG1"

// ErrBadFormat is returned when a loaded stream does not carry the
// expected header.
var ErrBadFormat = errors.New("export: unrecognized graph format")

// NodeDoc is the serialised form of one PDG node.
type NodeDoc struct {
	ID      int        `json:"id" msgpack:"id"`
	Kind    string     `json:"kind" msgpack:"kind"`
	Instrs  []string   `json:"instrs,omitempty" msgpack:"instrs,omitempty"`
	Members [][]string `json:"members,omitempty" msgpack:"members,omitempty"`
}

// HandleDoc is the serialised form of one inlined edge of a complex edge.
type HandleDoc struct {
	SrcOrdinal int    `json:"src_ordinal" msgpack:"src_ordinal"`
	TgtOrdinal int    `json:"tgt_ordinal" msgpack:"tgt_ordinal"`
	Kind       string `json:"kind" msgpack:"kind"`
}

// EdgeDoc is the serialised form of one PDG edge.
type EdgeDoc struct {
	Source  int         `json:"source" msgpack:"source"`
	Target  int         `json:"target" msgpack:"target"`
	Kind    string      `json:"kind" msgpack:"kind"`
	Label   string      `json:"label,omitempty" msgpack:"label,omitempty"`
	Handles []HandleDoc `json:"handles,omitempty" msgpack:"handles,omitempty"`
}

// GraphDoc is the serialised form of a whole PDG.
type GraphDoc struct {
	FunctionName  string    `json:"function_name" msgpack:"function_name"`
	Nodes         []NodeDoc `json:"nodes" msgpack:"nodes"`
	Edges         []EdgeDoc `json:"edges" msgpack:"edges"`
	EdgeReversals int       `json:"edge_reversals" msgpack:"edge_reversals"`
}

// Snapshot converts a PDG into its serialised form.
func Snapshot(p *pdg.PDG) *GraphDoc {
	doc := &GraphDoc{
		FunctionName:  p.FunctionName,
		EdgeReversals: p.EdgeReversals,
		Nodes:         make([]NodeDoc, 0, p.G.Size()),
		Edges:         make([]EdgeDoc, 0),
	}
	for _, id := range p.G.Nodes() {
		n := p.G.Node(id)
		nd := NodeDoc{ID: int(id), Kind: string(n.Kind)}
		if n.Kind == pdg.KindPi {
			for i := range n.Members {
				var lines []string
				for _, inst := range n.Members[i].Node.Instructions() {
					lines = append(lines, inst.String())
				}
				nd.Members = append(nd.Members, lines)
			}
		} else {
			for _, inst := range n.Instrs {
				nd.Instrs = append(nd.Instrs, inst.String())
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, id := range p.G.Nodes() {
		for _, e := range p.G.EdgesOf(id) {
			ed := EdgeDoc{
				Source: int(id),
				Target: int(e.Target),
				Kind:   string(e.Data.Kind),
				Label:  e.Data.Mem.Label(),
			}
			for _, h := range e.Data.Handles {
				ed.Handles = append(ed.Handles, HandleDoc{
					SrcOrdinal: h.SrcOrdinal,
					TgtOrdinal: h.TgtOrdinal,
					Kind:       string(h.Edge.Kind),
				})
			}
			doc.Edges = append(doc.Edges, ed)
		}
	}
	return doc
}

// SaveJSON writes the document as indented JSON.
func SaveJSON(w io.Writer, doc *GraphDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}
	return nil
}

// SaveMsgpack writes the document in the compact container format.
func SaveMsgpack(w io.Writer, doc *GraphDoc) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	return nil
}

// LoadMsgpack reads a document written by SaveMsgpack.
func LoadMsgpack(r io.Reader) (*GraphDoc, error) {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(header) != magic {
		return nil, ErrBadFormat
	}
	var doc GraphDoc
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	return &doc, nil
}
