// Package vm implements the register machine spec §4.4.2 and §4.4.3
// describe: a flat instruction-word stream, a stack of fixed 32-register
// frames, a heap for closures and copied compound symbols, and a dispatch
// loop over every opcode pkg/tac defines.
package vm

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"lamvm/pkg/assemble"
	"lamvm/pkg/consttab"
	coreerrors "lamvm/pkg/errors"
	"lamvm/pkg/symtab"
	"lamvm/pkg/tac"
	"lamvm/pkg/trace"
	"lamvm/pkg/values"
)

// maxCallDepth bounds the non-tail call stack; exceeding it traps instead
// of letting a runaway non-tail recursion exhaust the Go stack.
const maxCallDepth = 64 * 1024

// Frame is one call frame's register bank plus the bookkeeping needed to
// resume the caller when it returns (spec §4.4.2's "frame record"). native
// is set only for frames pushed internally by invoke (gen_ap's over-
// saturation path calling a function and waiting for its result) rather
// than by an ordinary call/gen_ap instruction.
type Frame struct {
	regs      [32]values.Value
	returnIP  int
	resultReg uint8
	native    *values.Value
}

// VM executes one assembled Program to completion.
type VM struct {
	code     []uint32
	table    *consttab.Table
	symbols  *symtab.SymbolTable
	funcMeta map[uint32]assemble.FuncMeta

	heap   *Heap
	frames []*Frame
	stage  [32]values.Value // set_arg staging area, consumed immediately by the next call/make_cl/part_ap

	ip     int
	result values.Value
	halted bool
}

// New prepares a VM to run prog from its entry point.
func New(prog *assemble.Program) *VM {
	return &VM{
		code:     prog.Code,
		table:    prog.Table,
		symbols:  prog.Symbols,
		funcMeta: prog.FuncMeta,
		heap:     newHeap(),
		ip:       int(prog.EntryAddr),
	}
}

// Run drives the dispatch loop to completion and returns the entry
// function's result.
func (vm *VM) Run() (values.Value, error) {
	vm.frames = []*Frame{{}}
	for !vm.halted {
		if err := vm.step(); err != nil {
			return 0, err
		}
	}
	return vm.result, nil
}

func (vm *VM) curFrame() *Frame { return vm.frames[len(vm.frames)-1] }

// step fetches and executes the single instruction at vm.ip.
func (vm *VM) step() error {
	ip := vm.ip
	if ip < 0 || ip >= len(vm.code) {
		return vm.trapAt(ip, fmt.Sprintf("instruction pointer %d out of range", ip))
	}
	frame := vm.curFrame()
	word := vm.code[ip]
	op := assemble.DecodeOp(word)
	r0, r1, r2 := assemble.DecodeR0(word), assemble.DecodeR1(word), assemble.DecodeR2(word)

	adv := 1
	var imm int32
	if op.Form() == tac.FormRI {
		if ip+1 >= len(vm.code) {
			return vm.trapAt(ip, "truncated instruction: missing immediate word")
		}
		imm = int32(vm.code[ip+1])
		adv = 2
	}
	nextIP := ip + adv
	trace.Printf("vm", "ip=%d %s r0=%d r1=%d r2=%d imm=%d", ip, op, r0, r1, r2, imm)

	switch op {
	case tac.OpRet:
		vm.finishReturn(frame.regs[r0])
		return nil

	case tac.OpLoadI:
		frame.regs[r0] = values.Number(imm)
	case tac.OpLoadPS:
		frame.regs[r0] = values.PlainSymbol(uint32(imm))
	case tac.OpLoadCS:
		frame.regs[r0] = values.CompoundSymbol(uint32(imm))
	case tac.OpLoadC:
		frame.regs[r0] = values.String(uint32(imm))
	case tac.OpLoadF:
		frame.regs[r0] = values.Function(uint32(imm))
	case tac.OpMove:
		frame.regs[r0] = frame.regs[r1]

	case tac.OpAdd, tac.OpSub, tac.OpMul, tac.OpDiv, tac.OpLt, tac.OpGt, tac.OpEq:
		if err := vm.execArith(op, frame, r0, r1, r2, ip); err != nil {
			return err
		}
	case tac.OpOr, tac.OpAnd:
		if err := vm.execBool(op, frame, r0, r1, r2, ip); err != nil {
			return err
		}
	case tac.OpNot:
		if err := vm.execNot(frame, r0, r1, ip); err != nil {
			return err
		}

	case tac.OpSetArg:
		vm.stage[r0] = frame.regs[r1]

	case tac.OpMakeCl:
		fn := frame.regs[r1]
		if fn.Tag() != values.TagFunction {
			return vm.trapAt(ip, "make_cl: source register does not hold a function address")
		}
		n := int(r2)
		addr := vm.heap.AllocClosure(fn.Addr(), cloneStage(vm.stage[:n]))
		frame.regs[r0] = values.Closure(addr)

	case tac.OpSetClVal:
		cl := frame.regs[r0]
		if cl.Tag() != values.TagClosure {
			return vm.trapAt(ip, "set_cl_val: register does not hold a closure")
		}
		vm.heap.SetClosureSlot(cl.Addr(), int(r2), frame.regs[r1])

	case tac.OpCopySym:
		addr := uint32(imm)
		header := vm.table.Get(addr)
		_, arity := consttab.DecodeSymbolHeaderWord(header)
		fields := make([]values.Value, arity)
		for i := 0; i < arity; i++ {
			fields[i] = vm.table.Field(addr, i)
		}
		frame.regs[r0] = values.HeapCompoundSymbol(vm.heap.AllocCompoundSymbol(header, fields))

	case tac.OpSetSymField:
		sym := frame.regs[r0]
		if sym.Tag() != values.TagHeapCompoundSymbol {
			return vm.trapAt(ip, "set_sym_field: register does not hold a heap compound symbol")
		}
		vm.heap.SetCompoundField(sym.Addr(), int(r2), frame.regs[r1])

	case tac.OpModGet:
		if err := vm.execModGet(frame, r0, r1, r2, ip); err != nil {
			return err
		}

	case tac.OpJmp:
		vm.ip = nextIP + int(imm)
		return nil

	case tac.OpMatch:
		subject := frame.regs[r0]
		patAddr := frame.regs[r1].Payload()
		k, ok := vm.execMatch(subject, patAddr, frame.regs[r2:])
		if !ok {
			return vm.trapAt(ip, "match: no branch matched")
		}
		vm.ip = nextIP + k*2
		return nil

	case tac.OpCall, tac.OpGenAp:
		return vm.performApply(frame.regs[r1], cloneStage(vm.stage[:r2]), frame, false, r0, nextIP)
	case tac.OpTailCall, tac.OpTailGenAp:
		return vm.performApply(frame.regs[r0], cloneStage(vm.stage[:r1]), frame, true, 0, 0)

	case tac.OpPartAp:
		fn := frame.regs[r1]
		if fn.Tag() != values.TagFunction {
			return vm.trapAt(ip, "part_ap: source register does not hold a function address")
		}
		addr := vm.heap.AllocClosure(fn.Addr(), cloneStage(vm.stage[:r2]))
		frame.regs[r0] = values.Closure(addr)

	case tac.OpFunHeader:
		// Reserved arity marker; codegen never emits it, the VM treats it
		// as a no-op if it's ever present in a hand-assembled stream.

	default:
		return vm.trapAt(ip, fmt.Sprintf("unknown opcode %d", uint8(op)))
	}

	vm.ip = nextIP
	return nil
}

func cloneStage(s []values.Value) []values.Value {
	out := make([]values.Value, len(s))
	copy(out, s)
	return out
}

// finishReturn implements ret's effect, also reused by tail-position
// under-saturated applications (spec §4.3's "the call's value becomes the
// current function's return value" applies just as well to a partial
// application as to a real callee's ret).
func (vm *VM) finishReturn(val values.Value) {
	popped := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	if popped.native != nil {
		*popped.native = val
		return
	}
	if len(vm.frames) == 0 {
		vm.result = val
		vm.halted = true
		return
	}
	caller := vm.frames[len(vm.frames)-1]
	caller.regs[popped.resultReg] = val
	vm.ip = popped.returnIP
}

// apply resolves fnVal to a target function address plus the full argument
// list it's been supplied so far: just args for a bare function, or a
// closure's stored captures/partial-args followed by args for a closure
// (spec §3's closure record, extended with a length word to also serve
// partial applications).
func (vm *VM) apply(fnVal values.Value, args []values.Value) (funcAddr uint32, combined []values.Value, err error) {
	switch fnVal.Tag() {
	case values.TagFunction:
		return fnVal.Addr(), args, nil
	case values.TagClosure:
		addr := fnVal.Addr()
		payload := vm.heap.ClosurePayload(addr)
		combined = make([]values.Value, len(payload)+len(args))
		copy(combined, payload)
		copy(combined[len(payload):], args)
		return vm.heap.ClosureFunc(addr), combined, nil
	default:
		return 0, nil, vm.trapErr("value is not callable")
	}
}

// performApply is the generic-apply decision spec §4.4.2 describes for
// gen_ap, shared by call/tail_call since a direct call is just the exact-
// saturation case of the same logic with the compiler having already
// proven the tag and arity match. tail reuses curFrame in place of pushing
// a new one; dest/nextIP are meaningless when tail is true.
func (vm *VM) performApply(fnVal values.Value, args []values.Value, curFrame *Frame, tail bool, dest uint8, nextIP int) error {
	for {
		funcAddr, combined, err := vm.apply(fnVal, args)
		if err != nil {
			return err
		}
		meta, ok := vm.funcMeta[funcAddr]
		if !ok {
			return vm.trapErr(fmt.Sprintf("call to unmapped function address %d", funcAddr))
		}
		arity := meta.NumFreeVars + meta.NumParams

		switch {
		case len(combined) == arity:
			if tail {
				return vm.enterTail(curFrame, funcAddr, combined)
			}
			return vm.enterCall(funcAddr, combined, dest, nextIP)

		case len(combined) < arity:
			result := values.Closure(vm.heap.AllocClosure(funcAddr, combined))
			if tail {
				vm.finishReturn(result)
				return nil
			}
			curFrame.regs[dest] = result
			vm.ip = nextIP
			return nil

		default: // over-saturated: call with exactly `arity` args, then apply the result to the rest
			first := combined[:arity]
			rest := combined[arity:]
			result, err := vm.invoke(funcAddr, first)
			if err != nil {
				return err
			}
			fnVal, args = result, rest
		}
	}
}

func (vm *VM) enterCall(funcAddr uint32, args []values.Value, dest uint8, nextIP int) error {
	if len(vm.frames) >= maxCallDepth {
		return vm.trapErr("stack overflow")
	}
	next := &Frame{resultReg: dest, returnIP: nextIP}
	copy(next.regs[:], args)
	vm.frames = append(vm.frames, next)
	vm.ip = int(funcAddr)
	return nil
}

func (vm *VM) enterTail(curFrame *Frame, funcAddr uint32, args []values.Value) error {
	for i := range curFrame.regs {
		curFrame.regs[i] = 0
	}
	copy(curFrame.regs[:], args)
	vm.ip = int(funcAddr)
	return nil
}

// invoke performs a synchronous nested call: push a frame, run the
// dispatch loop until it (and anything it calls) unwinds back off the
// stack, and return its result. Used only by gen_ap's over-saturation path,
// which genuinely needs the first call's result before it can build the
// second (spec §4.4.2: "apply, recurse").
func (vm *VM) invoke(funcAddr uint32, args []values.Value) (values.Value, error) {
	if len(vm.frames) >= maxCallDepth {
		return 0, vm.trapErr("stack overflow")
	}
	targetLen := len(vm.frames)
	var result values.Value
	next := &Frame{native: &result}
	copy(next.regs[:], args)
	vm.frames = append(vm.frames, next)

	savedIP := vm.ip
	vm.ip = int(funcAddr)
	for len(vm.frames) > targetLen {
		if err := vm.step(); err != nil {
			return 0, err
		}
	}
	vm.ip = savedIP
	return result, nil
}

func boolValue(b bool) values.Value {
	if b {
		return values.PlainSymbol(1)
	}
	return values.PlainSymbol(0)
}

func asBool(v values.Value) (bool, bool) {
	if v.Tag() != values.TagPlainSymbol {
		return false, false
	}
	switch v.AsSymbolID() {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}

func (vm *VM) execArith(op tac.Op, frame *Frame, r0, r1, r2 uint8, ip int) error {
	a, b := frame.regs[r1], frame.regs[r2]
	if op == tac.OpEq {
		frame.regs[r0] = boolValue(a == b)
		return nil
	}
	if !a.IsNumber() || !b.IsNumber() {
		return vm.trapAt(ip, fmt.Sprintf("%s on non-number operand", op))
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case tac.OpAdd:
		frame.regs[r0] = values.Number(x + y)
	case tac.OpSub:
		frame.regs[r0] = values.Number(x - y)
	case tac.OpMul:
		frame.regs[r0] = values.Number(x * y)
	case tac.OpDiv:
		if y == 0 {
			return vm.trapAt(ip, "division by zero")
		}
		frame.regs[r0] = values.Number(x / y)
	case tac.OpLt:
		frame.regs[r0] = boolValue(x < y)
	case tac.OpGt:
		frame.regs[r0] = boolValue(x > y)
	}
	return nil
}

func (vm *VM) execBool(op tac.Op, frame *Frame, r0, r1, r2 uint8, ip int) error {
	a, aok := asBool(frame.regs[r1])
	b, bok := asBool(frame.regs[r2])
	if !aok || !bok {
		return vm.trapAt(ip, fmt.Sprintf("%s on non-boolean operand", op))
	}
	var result bool
	if op == tac.OpOr {
		result = a || b
	} else {
		result = a && b
	}
	frame.regs[r0] = boolValue(result)
	return nil
}

func (vm *VM) execNot(frame *Frame, r0, r1 uint8, ip int) error {
	a, ok := asBool(frame.regs[r1])
	if !ok {
		return vm.trapAt(ip, "not on non-boolean operand")
	}
	frame.regs[r0] = boolValue(!a)
	return nil
}

// execModGet implements mod_get (spec §9's module name-lookup primitive,
// an opcode added beyond spec §6's table): scan a module's alternating
// (symbol, value) fields for symReg's symbol.
func (vm *VM) execModGet(frame *Frame, r0, r1, r2 uint8, ip int) error {
	mod := frame.regs[r1]
	sym := frame.regs[r2]
	if mod.Tag() != values.TagHeapCompoundSymbol {
		return vm.trapAt(ip, "mod_get: register does not hold a module value")
	}
	addr := mod.Addr()
	_, arity := consttab.DecodeSymbolHeaderWord(vm.heap.CompoundHeader(addr))
	for i := 0; i+1 < arity; i += 2 {
		if vm.heap.CompoundField(addr, i) == sym {
			frame.regs[r0] = vm.heap.CompoundField(addr, i+1)
			return nil
		}
	}
	return vm.trapAt(ip, "mod_get: symbol not found in module")
}

// trapAt and trapErr build a RuntimeTrap, wrapping the underlying cause
// with github.com/pkg/errors.Wrap per SPEC_FULL §3's plan so a trap's
// message always carries the instruction pointer it occurred at.
func (vm *VM) trapAt(ip int, msg string) error {
	wrapped := pkgerrors.Wrap(fmt.Errorf(msg), fmt.Sprintf("ip=%d", ip))
	return &coreerrors.RuntimeTrap{Msg: wrapped.Error(), IP: ip}
}

func (vm *VM) trapErr(msg string) error { return vm.trapAt(vm.ip, msg) }
