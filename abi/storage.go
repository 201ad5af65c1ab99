package abi

import "fmt"

// StorageClass categorizes where a value lives during a call.
type StorageClass uint8

const (
	// ClassIntReg: a general-purpose register.
	ClassIntReg StorageClass = iota
	// ClassFloatReg: a floating-point register.
	ClassFloatReg
	// ClassStack: a stack slot addressed by byte offset.
	ClassStack
	// ClassIndirect: a pointer to a caller-owned copy, carried like an
	// integer argument.
	ClassIndirect
	// ClassValue: the logical argument or return slot of the signature.
	// Used only as a binding endpoint, never returned by Classify.
	ClassValue
)

var classNames = [...]string{
	ClassIntReg:   "int",
	ClassFloatReg: "float",
	ClassStack:    "stack",
	ClassIndirect: "indirect",
	ClassValue:    "value",
}

func (c StorageClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Storage names one location a value can occupy: a register identified
// by class and register-file index, a stack slot identified by byte
// offset, or a logical value slot. Pure immutable value.
type Storage struct {
	Name   string
	Offset uint64
	Class  StorageClass
	Index  int
}

// IntReg returns an integer register storage. index addresses the
// machine's integer register file.
func IntReg(index int, name string) Storage {
	return Storage{Class: ClassIntReg, Index: index, Name: name}
}

// FloatReg returns a floating-point register storage.
func FloatReg(index int, name string) Storage {
	return Storage{Class: ClassFloatReg, Index: index, Name: name}
}

// StackSlot returns a stack storage at the given byte offset into the
// outgoing argument area.
func StackSlot(offset uint64) Storage {
	return Storage{Class: ClassStack, Offset: offset}
}

// ValueSlot returns the logical slot of argument arg.
func ValueSlot(arg int) Storage {
	return Storage{Class: ClassValue, Index: arg, Name: fmt.Sprintf("arg%d", arg)}
}

// ReturnSlot returns the logical return value slot.
func ReturnSlot() Storage {
	return Storage{Class: ClassValue, Index: -1, Name: "ret"}
}

func (s Storage) String() string {
	switch s.Class {
	case ClassStack:
		return fmt.Sprintf("stack+%d", s.Offset)
	case ClassValue:
		return s.Name
	default:
		if s.Name != "" {
			return s.Name
		}
		return fmt.Sprintf("%s%d", s.Class, s.Index)
	}
}

// IsRegister reports whether the storage is a physical register.
func (s Storage) IsRegister() bool {
	return s.Class == ClassIntReg || s.Class == ClassFloatReg
}
