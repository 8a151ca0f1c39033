package jack

import (
	_ "embed"
	"encoding/json"
)

// ----------------------------------------------------------------------------
// Standard-library ABI

// SubroutineSignature describes one Jack OS subroutine without its Jack
// source: its name, its kind (constructor, function or method) and its
// arity. LookupStdlib matches on the name only; neither the Lowerer nor
// cmd/jackc checks a call's kind or argument count against these fields.
type SubroutineSignature struct {
	Name  string         `json:"name"`
	Kind  SubroutineKind `json:"kind"`
	Arity int            `json:"arity"`
}

// ClassABI is the externally-visible surface of one Jack OS class.
type ClassABI struct {
	Name        string                 `json:"name"`
	Subroutines []SubroutineSignature `json:"subroutines"`
}

//go:embed stdlib.json
var stdlibJSON []byte

// StandardLibraryABI describes the eight Jack OS classes (Math, String,
// Array, Output, Screen, Keyboard, Memory, Sys) by signature only, keyed by
// class name. A program can reference e.g.
// 'Output.printString' without 'Output.jack' being present in its compiled
// class set, the same way the original toolchain links against the OS
// library without recompiling it — see cmd/jackc's '--link-stdlib' option.
var StandardLibraryABI map[string]ClassABI

func init() {
	StandardLibraryABI = map[string]ClassABI{}
	if err := json.Unmarshal(stdlibJSON, &StandardLibraryABI); err != nil {
		panic("jack: embedded stdlib.json is malformed: " + err.Error())
	}
}

// LookupStdlib resolves 'class.subroutine' against the embedded ABI,
// reporting whether it names a known OS subroutine.
func LookupStdlib(class, subroutine string) (SubroutineSignature, bool) {
	abi, ok := StandardLibraryABI[class]
	if !ok {
		return SubroutineSignature{}, false
	}
	for _, sig := range abi.Subroutines {
		if sig.Name == subroutine {
			return sig, true
		}
	}
	return SubroutineSignature{}, false
}
