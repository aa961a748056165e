// Package bytecode defines the register-machine instruction set and the
// CodeObject contract the VM executes. Compiling source into a CodeObject
// is out of scope here (see spec.md §1) — this package only fixes the
// in-memory shape that any front end must produce.
package bytecode

// OpCode identifies an instruction. Grouped to match spec.md §4.1's
// families; the grouping has no runtime meaning, it is purely for
// readability of this file and of disassembly output.
type OpCode uint16

const (
	// Loads/stores
	OpLoadConst OpCode = iota
	OpLoadFast
	OpStoreFast
	OpLoadGlobal
	OpStoreGlobal
	OpLoadAttr
	OpStoreAttr
	OpDeleteAttr
	OpLoadMethod
	OpLoadMethodCached
	OpSubscrLoad
	OpSubscrStore
	OpSubscrDelete
	OpSlice
	OpLoadClosure
	OpStoreClosure
	OpMoveReg

	// Arithmetic — three addressing modes per operator, plus monomorphic
	// specializations for int/float sites.
	OpBinaryAddRR
	OpBinaryAddRI
	OpBinaryAddIR
	OpBinarySubRR
	OpBinarySubRI
	OpBinarySubIR
	OpBinaryMulRR
	OpBinaryMulRI
	OpBinaryMulIR
	OpBinaryDivRR
	OpBinaryDivRI
	OpBinaryDivIR
	OpBinaryModRR
	OpBinaryModRI
	OpBinaryModIR
	OpBinaryPowRR
	OpBinaryPowRI
	OpBinaryPowIR
	OpBinaryFloorDivRR
	OpBinaryFloorDivRI
	OpBinaryFloorDivIR

	OpFastIntAdd
	OpFastIntSub
	OpFastIntMul
	OpFastIntFloorDiv
	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div

	// Comparisons
	OpCompareEqual
	OpCompareNotEqual
	OpCompareLess
	OpCompareLessEqual
	OpCompareGreater
	OpCompareGreaterEqual
	OpCompareIn
	OpCompareNotIn
	OpCompareIs
	OpCompareIsNot

	// Bitwise
	OpBinaryBitAnd
	OpBinaryBitOr
	OpBinaryBitXor
	OpBinaryLShift
	OpBinaryRShift

	// Unary
	OpUnaryNot
	OpUnaryNegate
	OpUnaryInvert

	// Control flow
	OpReturnValue
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpSetupLoop
	OpSetupExcept
	OpSetupFinally
	OpPopBlock
	OpBreakLoop
	OpContinueLoop
	OpRaise
	OpEndFinally
	OpAssert

	// Iteration
	OpGetIter
	OpForIter
	OpNext

	// Calls
	OpCallFunction
	OpCallFunctionKw
	OpCallFunctionEx
	OpCallMethod
	OpCallMethodCached

	// Construction
	OpBuildList
	OpBuildTuple
	OpBuildSet
	OpBuildDict
	OpMakeFunction
	OpMakeStar
	OpWrapKwargs

	// Object/class
	OpLoadZeroArgSuper
	OpLoadClassDeref

	// Imports
	OpImportModule
	OpImportFrom

	// Generators/coroutines
	OpYieldValue
	OpYieldFrom
	OpAwait

	// Exceptions
	OpStoreException
	OpGetExceptionValue
	OpMatchExceptionType

	// Optional type enforcement
	OpRegisterType
	OpCheckType
	OpCheckFunctionParam
	OpCheckFunctionReturn
	OpCheckAttrType
	OpInferType

	// Optional fused super-instructions
	OpLoadAndAdd
	OpLoadAddStore
	OpLoadSubStore
	OpLoadMulStore
	OpLoadDivStore

	opCodeCount
)

var opNames = [...]string{
	OpLoadConst:           "LoadConst",
	OpLoadFast:            "LoadFast",
	OpStoreFast:           "StoreFast",
	OpLoadGlobal:          "LoadGlobal",
	OpStoreGlobal:         "StoreGlobal",
	OpLoadAttr:            "LoadAttr",
	OpStoreAttr:           "StoreAttr",
	OpDeleteAttr:          "DeleteAttr",
	OpLoadMethod:          "LoadMethod",
	OpLoadMethodCached:    "LoadMethodCached",
	OpSubscrLoad:          "SubscrLoad",
	OpSubscrStore:         "SubscrStore",
	OpSubscrDelete:        "SubscrDelete",
	OpSlice:               "Slice",
	OpLoadClosure:         "LoadClosure",
	OpStoreClosure:        "StoreClosure",
	OpMoveReg:             "MoveReg",
	OpBinaryAddRR:         "BinaryAddRR",
	OpBinaryAddRI:         "BinaryAddRI",
	OpBinaryAddIR:         "BinaryAddIR",
	OpBinarySubRR:         "BinarySubRR",
	OpBinarySubRI:         "BinarySubRI",
	OpBinarySubIR:         "BinarySubIR",
	OpBinaryMulRR:         "BinaryMulRR",
	OpBinaryMulRI:         "BinaryMulRI",
	OpBinaryMulIR:         "BinaryMulIR",
	OpBinaryDivRR:         "BinaryDivRR",
	OpBinaryDivRI:         "BinaryDivRI",
	OpBinaryDivIR:         "BinaryDivIR",
	OpBinaryModRR:         "BinaryModRR",
	OpBinaryModRI:         "BinaryModRI",
	OpBinaryModIR:         "BinaryModIR",
	OpBinaryPowRR:         "BinaryPowRR",
	OpBinaryPowRI:         "BinaryPowRI",
	OpBinaryPowIR:         "BinaryPowIR",
	OpBinaryFloorDivRR:    "BinaryFloorDivRR",
	OpBinaryFloorDivRI:    "BinaryFloorDivRI",
	OpBinaryFloorDivIR:    "BinaryFloorDivIR",
	OpFastIntAdd:          "FastIntAdd",
	OpFastIntSub:          "FastIntSub",
	OpFastIntMul:          "FastIntMul",
	OpFastIntFloorDiv:     "FastIntFloorDiv",
	OpF64Add:              "F64Add",
	OpF64Sub:              "F64Sub",
	OpF64Mul:              "F64Mul",
	OpF64Div:              "F64Div",
	OpCompareEqual:        "CompareEqual",
	OpCompareNotEqual:     "CompareNotEqual",
	OpCompareLess:         "CompareLess",
	OpCompareLessEqual:    "CompareLessEqual",
	OpCompareGreater:      "CompareGreater",
	OpCompareGreaterEqual: "CompareGreaterEqual",
	OpCompareIn:           "CompareIn",
	OpCompareNotIn:        "CompareNotIn",
	OpCompareIs:           "CompareIs",
	OpCompareIsNot:        "CompareIsNot",
	OpBinaryBitAnd:        "BinaryBitAnd",
	OpBinaryBitOr:         "BinaryBitOr",
	OpBinaryBitXor:        "BinaryBitXor",
	OpBinaryLShift:        "BinaryLShift",
	OpBinaryRShift:        "BinaryRShift",
	OpUnaryNot:            "UnaryNot",
	OpUnaryNegate:         "UnaryNegate",
	OpUnaryInvert:         "UnaryInvert",
	OpReturnValue:         "ReturnValue",
	OpJump:                "Jump",
	OpJumpIfTrue:          "JumpIfTrue",
	OpJumpIfFalse:         "JumpIfFalse",
	OpSetupLoop:           "SetupLoop",
	OpSetupExcept:         "SetupExcept",
	OpSetupFinally:        "SetupFinally",
	OpPopBlock:            "PopBlock",
	OpBreakLoop:           "BreakLoop",
	OpContinueLoop:        "ContinueLoop",
	OpRaise:               "Raise",
	OpEndFinally:          "EndFinally",
	OpAssert:              "Assert",
	OpGetIter:             "GetIter",
	OpForIter:             "ForIter",
	OpNext:                "Next",
	OpCallFunction:        "CallFunction",
	OpCallFunctionKw:      "CallFunctionKw",
	OpCallFunctionEx:      "CallFunctionEx",
	OpCallMethod:          "CallMethod",
	OpCallMethodCached:    "CallMethodCached",
	OpBuildList:           "BuildList",
	OpBuildTuple:          "BuildTuple",
	OpBuildSet:            "BuildSet",
	OpBuildDict:           "BuildDict",
	OpMakeFunction:        "MakeFunction",
	OpMakeStar:            "MakeStar",
	OpWrapKwargs:          "WrapKwargs",
	OpLoadZeroArgSuper:    "LoadZeroArgSuper",
	OpLoadClassDeref:      "LoadClassDeref",
	OpImportModule:        "ImportModule",
	OpImportFrom:          "ImportFrom",
	OpYieldValue:          "YieldValue",
	OpYieldFrom:           "YieldFrom",
	OpAwait:               "Await",
	OpStoreException:      "StoreException",
	OpGetExceptionValue:   "GetExceptionValue",
	OpMatchExceptionType:  "MatchExceptionType",
	OpRegisterType:        "RegisterType",
	OpCheckType:           "CheckType",
	OpCheckFunctionParam:  "CheckFunctionParam",
	OpCheckFunctionReturn: "CheckFunctionReturn",
	OpCheckAttrType:       "CheckAttrType",
	OpInferType:           "InferType",
	OpLoadAndAdd:          "LoadAndAdd",
	OpLoadAddStore:        "LoadAddStore",
	OpLoadSubStore:        "LoadSubStore",
	OpLoadMulStore:        "LoadMulStore",
	OpLoadDivStore:        "LoadDivStore",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}

// Instruction is the fixed-width in-memory instruction record from
// spec.md §3/§6: opcode plus three u32 operands and a source line. Unlike
// the teacher's packed 32-bit iABC word (vmregister/bytecode.go), operands
// are not bit-packed — a CodeObject's register count is set by its
// compiler, and an 8-bit register field would silently cap it.
type Instruction struct {
	Op   OpCode
	A, B, C uint32
	Line uint32
}

func Make(op OpCode, a, b, c uint32) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c}
}

func MakeLine(op OpCode, a, b, c, line uint32) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c, Line: line}
}
