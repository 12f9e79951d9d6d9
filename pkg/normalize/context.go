package normalize

import (
	"lamvm/pkg/nst"
)

// binding describes one name bound directly in a context (a FunParam, a
// MatchBranch matched var, or a locally hoisted Let).
type binding struct {
	kind      nst.VarKind // FunParam or LocalVar
	isConst   bool
	constAtom nst.AtomValue // valid iff isConst
}

// context models one lexical scope (spec §4.2.1): a lambda or match-branch
// body. Local lets accumulate flatly into the same context as they're
// hoisted — a new context is pushed only when entering a nested
// lambda/match branch, never for an ordinary `val`.
type context struct {
	parent   *context
	selfName string // tentative self-reference name, "" if this scope isn't under a named `val`

	bindings  map[string]*binding
	constMemo map[string]nst.Var // outer ConstantFreeVar name -> hoisted local in this scope

	freeVars   []nst.Var // ordered DynamicFreeVar capture list for the lambda this context represents
	freeVarPos map[string]int

	gensym int
}

func newContext(parent *context, selfName string) *context {
	return &context{
		parent:     parent,
		selfName:   selfName,
		bindings:   make(map[string]*binding),
		constMemo:  make(map[string]nst.Var),
		freeVarPos: make(map[string]int),
	}
}

func (c *context) fresh(prefix string) string {
	c.gensym++
	return prefix + "$" + itoa(c.gensym)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// bindDirect records name as a FunParam/LocalVar binding in this context.
func (c *context) bindDirect(name string, kind nst.VarKind, isConst bool, constAtom nst.AtomValue) nst.Var {
	c.bindings[name] = &binding{kind: kind, isConst: isConst, constAtom: constAtom}
	return nst.Var{Name: name, Kind: kind}
}

// addFreeVar records name as one of this context's (this lambda's)
// dynamic free-var captures, in first-seen order.
func (c *context) addFreeVar(name string) {
	if _, ok := c.freeVarPos[name]; ok {
		return
	}
	c.freeVarPos[name] = len(c.freeVars)
	c.freeVars = append(c.freeVars, nst.Var{Name: name, Kind: nst.DynamicFreeVar})
}

// resolved is what lookup returns: the classified kind, plus — for a
// ConstantFreeVar — the atom to replicate when materializing it locally.
type resolved struct {
	kind      nst.VarKind
	constAtom nst.AtomValue
}

// lookupError reports an unresolved name.
type lookupError struct{ name string }

func (e *lookupError) Error() string { return "unknown variable: " + e.name }

// lookup resolves name starting from context c (the scope containing the
// textual reference), per spec §4.2.1. Crossing from c out to an ancestor
// that owns a *dynamic* (non-constant) binding registers name as a
// DynamicFreeVar capture in c and every context between c and that
// ancestor (the "push free vars through closures" pull-up); a
// ConstantFreeVar resolution never registers a capture, since it is
// rematerialized locally wherever referenced instead.
func (c *context) lookup(name string) (resolved, error) {
	return lookupFrom(c, name, c, nil)
}

func lookupFrom(cur *context, name string, origin *context, chain []*context) (resolved, error) {
	if cur == origin {
		if b, ok := cur.bindings[name]; ok {
			return resolved{kind: b.kind}, nil
		}
	} else if b, ok := cur.bindings[name]; ok {
		if b.isConst {
			return resolved{kind: nst.ConstantFreeVar, constAtom: b.constAtom}, nil
		}
		for _, mid := range chain {
			mid.addFreeVar(name)
		}
		return resolved{kind: nst.DynamicFreeVar}, nil
	}
	if cur.selfName != "" && cur.selfName == name {
		return resolved{kind: nst.RecursiveVar}, nil
	}
	if cur.parent == nil {
		return resolved{}, &lookupError{name: name}
	}
	return lookupFrom(cur.parent, name, origin, append(chain, cur))
}
