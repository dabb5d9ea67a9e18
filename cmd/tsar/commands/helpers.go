package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/oUaTEnCi/tsar/internal/log"
	"github.com/oUaTEnCi/tsar/pkg/astutil"
)

// openSource validates the path and parses the C translation unit.
func openSource(path string) (*astutil.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	if !isCFile(path) {
		return nil, fmt.Errorf("unsupported file type: %s (only .c and .h files supported)", path)
	}
	return astutil.ParseFile(path)
}

// isCFile checks the extension.
func isCFile(path string) bool {
	return strings.HasSuffix(path, ".c") || strings.HasSuffix(path, ".h")
}

// resolveFunction picks the function to analyze: the explicit argument
// when given, an interactive selection on a TTY, or an error otherwise.
func resolveFunction(file *astutil.File, path string, args []string) (string, error) {
	if len(args) >= 2 {
		name := args[1]
		if _, ok := file.Function(name); !ok {
			if suggestions := similarFunctions(file, name); len(suggestions) > 0 {
				return "", fmt.Errorf("function %q not found in %s\nDid you mean: %s?", name, path, suggestions[0])
			}
			return "", fmt.Errorf("function %q not found in %s", name, path)
		}
		return name, nil
	}

	names := file.Functions()
	if len(names) == 0 {
		return "", fmt.Errorf("no function definitions found in %s", path)
	}
	if len(names) == 1 {
		return names[0], nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("multiple functions in %s; pass a function name", path)
	}

	var choice string
	options := make([]huh.Option[string], 0, len(names))
	for _, n := range names {
		options = append(options, huh.NewOption(n, n))
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a function").
				Description("The file defines several functions; pick one to analyze").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("selecting function: %w", err)
	}
	return choice, nil
}

// similarFunctions finds functions with similar names (prefix or
// substring match).
func similarFunctions(file *astutil.File, name string) []string {
	var res []string
	lower := strings.ToLower(name)
	for _, fn := range file.Functions() {
		if strings.Contains(strings.ToLower(fn), lower) || strings.Contains(lower, strings.ToLower(fn)) {
			res = append(res, fn)
		}
	}
	return res
}

// diagLogger returns the shared logger tagged with the graph kind a
// command is building.
func diagLogger(component string) log.Logger {
	return log.Default().WithPrefix(component)
}

// splitLabel breaks a multi-line node label into its lines.
func splitLabel(label string) []string {
	return strings.Split(label, "\n")
}

// writeOutput sends data to --out when set, stdout otherwise.
func writeOutput(outPath string, data []byte) error {
	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}
