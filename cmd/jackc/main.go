package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/teris-io/cli"

	"github.com/hmny-n2t/jackpipe/pkg/jack"
	"github.com/hmny-n2t/jackpipe/pkg/vm"
)

var description = strings.ReplaceAll(`
The Jack Compiler translates programs (composed of one or more classes)
written in the Jack language into VM modules that can be further lowered to
Hack assembly. A directory input compiles every '.jack' entry found directly
inside it (non-recursive) as one program, so cross-class method/constructor
calls resolve against the whole set.
`, "\n", " ")

var jackCompiler = cli.New(description).
	WithArg(cli.NewArg("inputs", "Source '.jack' file(s) or directory/directories to compile").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("manifest", "Project manifest (YAML) naming extra source roots and link options").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("link-stdlib", "Verify that every cross-class call unresolved locally names a known standard-library subroutine").
		WithType(cli.TypeBool)).
	WithAction(handler)

// manifest is the optional '--manifest' project file: additional source
// roots to compile alongside the positional arguments, and whether to
// require every otherwise-unresolved call to name a standard-library
// subroutine (see pkg/jack/stdlib.go).
type manifest struct {
	Sources    []string `yaml:"sources"`
	LinkStdlib bool     `yaml:"link_stdlib"`
}

func loadManifest(path string) (manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

func handler(args []string, options map[string]string) int {
	roots := append([]string{}, args...)
	linkStdlib := false
	if _, enabled := options["link-stdlib"]; enabled {
		linkStdlib = true
	}

	if path, given := options["manifest"]; given {
		m, err := loadManifest(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return -1
		}
		roots = append(roots, m.Sources...)
		linkStdlib = linkStdlib || m.LinkStdlib
	}

	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: no input file or directory given, use --help")
		return -1
	}

	units, err := discoverUnits(roots)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return -1
	}

	program := jack.Program{}
	for _, unit := range units {
		source, err := os.ReadFile(unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to open input file: %s\n", err)
			return -1
		}

		name := strings.TrimSuffix(filepath.Base(unit), filepath.Ext(unit))
		parser, err := jack.NewParser(unit, string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return -1
		}
		class, err := parser.ParseClass()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return -1
		}
		program[name] = class
	}

	lowerer := jack.NewLowerer()
	vmProgram, err := lowerer.LowerProgram(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return -1
	}

	if err := verifyLinkage(vmProgram, program, linkStdlib); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return -1
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return -1
	}

	for unit := range compiled {
		outPath := unit
		if src, ok := findUnitPath(units, unit); ok {
			outPath = strings.TrimSuffix(src, filepath.Ext(src))
		}

		out, err := os.Create(outPath + ".vm")
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to open output file: %s\n", err)
			return -1
		}
		for _, line := range compiled[unit] {
			fmt.Fprintln(out, line)
		}
		out.Close()
	}

	return 0
}

// discoverUnits expands each root (a '.jack' file or a directory) into the
// list of '.jack' files it names, a directory contributing every entry
// found directly inside it (not recursively).
func discoverUnits(roots []string) ([]string, error) {
	var units []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("resolving input %q: %w", root, err)
		}

		if !info.IsDir() {
			units = append(units, root)
			continue
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading directory %q: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".jack" {
				continue
			}
			units = append(units, filepath.Join(root, entry.Name()))
		}
	}
	return units, nil
}

func findUnitPath(units []string, className string) (string, bool) {
	for _, unit := range units {
		if strings.TrimSuffix(filepath.Base(unit), filepath.Ext(unit)) == className {
			return unit, true
		}
	}
	return "", false
}

// verifyLinkage walks every emitted call target and, for any class not
// present in the compiled program, requires '--link-stdlib' to have been
// given and the target to name a known standard-library subroutine — the
// one place stdlib.go's ABI is consulted, since the Lowerer itself never
// needs to know whether a callee actually exists (no type checking beyond
// symbol-table kind resolution is performed anywhere in this pipeline).
func verifyLinkage(compiled vm.Program, program jack.Program, linkStdlib bool) error {
	for _, module := range compiled {
		for _, op := range module {
			call, ok := op.(vm.FuncCallOp)
			if !ok {
				continue
			}
			class, sub, found := strings.Cut(call.Name, ".")
			if !found {
				continue
			}
			if _, ok := program[class]; ok {
				continue
			}
			if !linkStdlib {
				return fmt.Errorf("call to undeclared class %q (pass --link-stdlib to allow standard-library calls)", class)
			}
			if _, ok := jack.LookupStdlib(class, sub); !ok {
				return fmt.Errorf("call to %q names neither a compiled class nor a standard-library subroutine", call.Name)
			}
		}
	}
	return nil
}

func main() { os.Exit(jackCompiler.Run(os.Args, os.Stdout)) }
