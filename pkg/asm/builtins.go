package asm

// ReservedSymbols is the set of predeclared Hack assembly symbols a user
// label declaration must not shadow: the VM-convention pointer aliases, the
// sixteen general-purpose registers, and the two memory-mapped I/O bases.
var ReservedSymbols = map[string]uint16{
	// Virtual Machine specific aliases (see project 7)
	"SP": 0, "LCL": 1, "ARG": 2, "THIS": 3, "THAT": 4,
	// Named general purpose registers
	"R0": 0, "R1": 1, "R2": 2, "R3": 3, "R4": 4, "R5": 5,
	"R6": 6, "R7": 7, "R8": 8, "R9": 9, "R10": 10, "R11": 11,
	"R12": 12, "R13": 13, "R14": 14, "R15": 15,
	// Memory mapped I/O locations
	"SCREEN": 16384, "KBD": 24576,
}
