package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"

	"github.com/hmny-n2t/jackpipe/pkg/asm"
	"github.com/hmny-n2t/jackpipe/pkg/vm"
)

var description = strings.ReplaceAll(`
The VM Translator translates programs (composed of one or more modules) written in
the VM language into Hack assembly code. A single '.vm' file produces a sibling
'.asm' file; a directory input merges every '.vm' entry found directly inside it
into one '.asm' file named after the directory.
`, "\n", " ")

var vmTranslator = cli.New(description).
	WithArg(cli.NewArg("inputs", "Bytecode '.vm' file(s) or a directory of them to translate").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Prepends bootstrap code that sets SP=256 and calls Sys.init").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("verify", "Reparses the generated assembly and fails if it doesn't round-trip").
		WithType(cli.TypeBool)).
	WithAction(handler)

func handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "ERROR: no input file or directory given, use --help")
		return -1
	}

	units, outputPath, err := discoverUnits(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return -1
	}

	program := vm.Program{}
	for _, unit := range units {
		content, err := os.ReadFile(unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to open input file: %s\n", err)
			return -1
		}

		name := strings.TrimSuffix(filepath.Base(unit), filepath.Ext(unit))
		parser := vm.NewParser(bytes.NewReader(content))
		module, err := parser.Parse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to complete parsing pass: %s\n", err)
			return -1
		}
		program[name] = module
	}

	lowerer := vm.NewLowerer()
	asmProgram, err := lowerer.Lower(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to complete lowering pass: %s\n", err)
		return -1
	}

	if _, enabled := options["bootstrap"]; enabled {
		asmProgram = append(lowerer.Bootstrap(), asmProgram...)
	}

	codegen := asm.NewCodeGenerator(asmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to complete codegen pass: %s\n", err)
		return -1
	}

	text := strings.Join(compiled, "\n") + "\n"

	if _, enabled := options["verify"]; enabled {
		if err := verifyRoundTrip(text, len(asmProgram)); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: generated assembly failed verification: %s\n", err)
			return -1
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to open output file: %s\n", err)
		return -1
	}
	defer out.Close()

	if _, err := out.WriteString(text); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to write output file: %s\n", err)
		return -1
	}

	return 0
}

// verifyRoundTrip reparses the just-generated assembly text and checks that
// it yields the same number of statements the code generator consumed — a
// sanity check that the textual codegen pass didn't silently malform an
// instruction, exercising the goparsec-based asm.Parser the code generator
// never otherwise needs.
func verifyRoundTrip(text string, wantStatements int) error {
	parser := asm.NewParser(strings.NewReader(text))
	reparsed, err := parser.Parse()
	if err != nil {
		return fmt.Errorf("reparsing generated assembly: %w", err)
	}
	if len(reparsed) != wantStatements {
		return fmt.Errorf("statement count mismatch: generated %d, reparsed %d", wantStatements, len(reparsed))
	}
	return nil
}

// discoverUnits resolves the positional inputs into the list of '.vm' files
// to parse plus the single output path to write: a lone file input produces
// a sibling '.asm' file, while a directory input names '<dir>/<dir>.asm'
// and draws from every '.vm' entry found directly inside it.
func discoverUnits(inputs []string) ([]string, string, error) {
	if len(inputs) == 1 {
		info, err := os.Stat(inputs[0])
		if err != nil {
			return nil, "", fmt.Errorf("resolving input %q: %w", inputs[0], err)
		}

		if info.IsDir() {
			dir := filepath.Clean(inputs[0])
			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil, "", fmt.Errorf("reading directory %q: %w", dir, err)
			}

			var units []string
			for _, entry := range entries {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".vm" {
					continue
				}
				units = append(units, filepath.Join(dir, entry.Name()))
			}
			return units, filepath.Join(dir, filepath.Base(dir)+".asm"), nil
		}

		return inputs, strings.TrimSuffix(inputs[0], filepath.Ext(inputs[0])) + ".asm", nil
	}

	return inputs, strings.TrimSuffix(inputs[0], filepath.Ext(inputs[0])) + ".asm", nil
}

func main() { os.Exit(vmTranslator.Run(os.Args, os.Stdout)) }
