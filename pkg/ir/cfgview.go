package ir

import "github.com/oUaTEnCi/tsar/pkg/postdom"

// cfgView adapts a function's block graph to the generic CFG capability
// set shared by the post-dominator and CDG builders.
type cfgView struct {
	f *Function
}

// CFGView exposes the function through the generic CFG interface.
func CFGView(f *Function) postdom.CFG[*BasicBlock] {
	return cfgView{f: f}
}

func (c cfgView) Nodes() []*BasicBlock { return c.f.Blocks }

func (c cfgView) Succs(b *BasicBlock) []*BasicBlock { return b.Succs }

func (c cfgView) Entry() *BasicBlock { return c.f.Entry() }
