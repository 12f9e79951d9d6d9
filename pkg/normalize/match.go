package normalize

import (
	"lamvm/pkg/ast"
	"lamvm/pkg/consttab"
	"lamvm/pkg/nst"
	"lamvm/pkg/values"
)

// encodePattern implements spec §4.2.3's recursive pattern encoder,
// threading the capture-slot counter through sub-patterns left to right.
func (n *Normalizer) encodePattern(p ast.Pattern, slot *int) ([]string, consttab.PatternNode) {
	switch pt := p.(type) {
	case ast.PatNumber:
		return nil, consttab.PatLiteral{Value: values.Number(int32(pt.Value))}

	case ast.PatSymbol:
		if len(pt.Args) == 0 {
			return nil, consttab.PatLiteral{Value: values.PlainSymbol(n.Symbols.Intern(pt.Tag))}
		}
		var captured []string
		children := make([]consttab.PatternNode, len(pt.Args))
		for i, sub := range pt.Args {
			names, node := n.encodePattern(sub, slot)
			captured = append(captured, names...)
			children[i] = node
		}
		return captured, consttab.PatCompound{SymbolID: n.Symbols.Intern(pt.Tag), Children: children}

	case ast.PatVar:
		s := *slot
		*slot++
		return []string{pt.Name}, consttab.PatCapture{Slot: s}

	case ast.PatWildcard:
		s := *slot
		*slot++
		return []string{"_"}, consttab.PatCapture{Slot: s}

	default:
		panic("normalize: unknown pattern node")
	}
}

// atomizeMatch lowers a match expression: encodes every branch's pattern
// into one match-data const-table cell, then compiles each branch body in
// a fresh context seeded with its captured variables (spec §4.2.2).
func (n *Normalizer) atomizeMatch(e *emitter, ex *ast.Match) (nst.AtomValue, error) {
	subjAtom, err := n.atomize(e, ex.Subject)
	if err != nil {
		return nil, err
	}
	subjVar := e.ensureVar(subjAtom, isConstantAtom(subjAtom))

	roots := make([]consttab.PatternNode, len(ex.Branches))
	matched := make([][]string, len(ex.Branches))
	maxCaptures := 0
	for i, br := range ex.Branches {
		slot := 0
		names, node := n.encodePattern(br.Pattern, &slot)
		roots[i] = node
		matched[i] = names
		if len(names) > maxCaptures {
			maxCaptures = len(names)
		}
	}
	patAddr := n.Table.AddMatchData(roots)

	branches := make([]nst.Atom, len(ex.Branches))
	for i, br := range ex.Branches {
		child := newContext(e.ctx, "")
		for _, name := range matched[i] {
			if name == "_" {
				continue
			}
			child.bindDirect(name, nst.FunParam, false, nil)
		}
		childEmitter := newEmitter(child)
		bodyTail, err := n.atomize(childEmitter, br.Body)
		if err != nil {
			return nil, err
		}
		body := childEmitter.finish(bodyTail)
		branches[i] = nst.Atom{Value: nst.MatchBranch{
			FreeVars:    child.freeVars,
			MatchedVars: matched[i],
			Body:        body,
			SelfSlot:    -1,
		}}
	}

	return nst.Match{MaxCaptures: maxCaptures, Subject: subjVar, PatAddr: patAddr, Branches: branches}, nil
}
