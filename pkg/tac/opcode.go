// Package tac defines the three-address code the code generator emits
// (spec §4.3) and the assembler packs into instruction words (spec §6).
package tac

// Op is a TAC opcode. Values 0-20 and 63 are exactly the ids spec §6's
// opcode table assigns; 21-29 extend that table for operations spec §4's
// prose requires but the table omits — make_cl, copy_sym/set_sym_field
// (described in §4.4.2's execution model), the lt/gt/||/&&/! primitives
// §4.2.2 names among the recognized operators but whose opcodes the table
// never lists alongside add/sub/mul/div/eq, and mod_get for module lookup.
// The assembler packs these exactly like their listed peers.
type Op uint8

const (
	OpRet Op = iota // 0: ret r0
	OpLoadI
	OpLoadPS
	OpLoadCS
	OpLoadC
	OpLoadF
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMove
	OpCall
	OpGenAp
	OpTailCall
	OpTailGenAp
	OpPartAp
	OpJmp
	OpMatch
	OpSetArg
	OpSetClVal
	OpEq
	OpMakeCl // 21: allocate a closure record from a loaded function address
	OpCopySym
	OpSetSymField
	OpLt
	OpGt
	OpOr
	OpAnd
	OpNot
	OpModGet // 29: dynamic module-field lookup by symbol id (not in spec §6's table)
	OpFunHeader Op = 63 // arity marker
)

// Form is an instruction's operand shape, mirroring spec §6's "RRR"/"RI"/
// "RR"/"R" encodings. The assembler (pkg/assemble) and the VM use it to
// size instructions: RI-form takes two words, every other form one.
type Form int

const (
	FormR Form = iota
	FormRR
	FormRRR
	FormRI
)

var names = map[Op]string{
	OpRet:         "ret",
	OpLoadI:       "load_i",
	OpLoadPS:      "load_ps",
	OpLoadCS:      "load_cs",
	OpLoadC:       "load_c",
	OpLoadF:       "load_f",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpMove:        "move",
	OpCall:        "call",
	OpGenAp:       "gen_ap",
	OpTailCall:    "tail_call",
	OpTailGenAp:   "tail_gen_ap",
	OpPartAp:      "part_ap",
	OpJmp:         "jmp",
	OpMatch:       "match",
	OpSetArg:      "set_arg",
	OpSetClVal:    "set_cl_val",
	OpEq:          "eq",
	OpMakeCl:      "make_cl",
	OpCopySym:     "copy_sym",
	OpSetSymField: "set_sym_field",
	OpLt:          "lt",
	OpGt:          "gt",
	OpOr:          "or",
	OpAnd:         "and",
	OpNot:         "not",
	OpModGet:      "mod_get",
	OpFunHeader:   "fun_header",
}

func (o Op) String() string {
	if s, ok := names[o]; ok {
		return s
	}
	return "op?"
}

// Form reports the operand shape the assembler must pack this op as.
func (o Op) Form() Form {
	switch o {
	case OpRet, OpNot:
		if o == OpNot {
			return FormRR
		}
		return FormR
	case OpLoadI, OpLoadPS, OpLoadCS, OpLoadC, OpLoadF, OpJmp, OpCopySym, OpFunHeader:
		return FormRI
	case OpMove:
		return FormRR
	default:
		return FormRRR
	}
}
