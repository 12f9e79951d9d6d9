package assemble

import (
	"fmt"
	"sort"
	"strings"

	"lamvm/pkg/tac"
)

// Disassemble renders an assembled Program back to text, one instruction
// per line prefixed with its absolute address, and a label at every known
// function entry point. The -dump-* flags and trap messages do not use it;
// -dump-tac prints codegen's TAC before assembly.
func Disassemble(p *Program) string {
	labels := make(map[uint32]int, len(p.FuncAddr))
	for i, a := range p.FuncAddr {
		labels[a] = i
	}

	var b strings.Builder
	ip := uint32(0)
	for int(ip) < len(p.Code) {
		if idx, ok := labels[ip]; ok {
			fmt.Fprintf(&b, "fn%d:\n", idx)
		}
		word := p.Code[ip]
		op := DecodeOp(word)
		r0, r1, r2 := DecodeR0(word), DecodeR1(word), DecodeR2(word)
		if op.Form() == tac.FormRI {
			imm := int32(p.Code[ip+1])
			fmt.Fprintf(&b, "%6d: %-14s r0=%d imm=%d\n", ip, op, r0, imm)
			ip += 2
			continue
		}
		fmt.Fprintf(&b, "%6d: %-14s r0=%d r1=%d r2=%d\n", ip, op, r0, r1, r2)
		ip++
	}
	return b.String()
}

// FuncSummary lists every function's absolute address and arity, sorted by
// address, one line per function.
func FuncSummary(p *Program) string {
	addrs := make([]uint32, 0, len(p.FuncMeta))
	for a := range p.FuncMeta {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	var b strings.Builder
	for _, a := range addrs {
		m := p.FuncMeta[a]
		fmt.Fprintf(&b, "  addr=%d freevars=%d params=%d\n", a, m.NumFreeVars, m.NumParams)
	}
	return b.String()
}
