//go:build tools
// +build tools

package main

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Schema represents a JSON Schema object from input.json
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property represents a JSON Schema property
type Property struct {
	Type string `json:"type"`
}

// getRequiredInputs parses the policy input schema to get the required input IDs
func getRequiredInputs(schemaPath string) (map[string]bool, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var schema Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	required := make(map[string]bool)
	for _, inputID := range schema.Required {
		required[inputID] = false // not found yet
	}

	return required, nil
}

// getProvidedInputs scans the codebase for sources producing policy inputs
func getProvidedInputs() (map[string]bool, error) {
	provided := make(map[string]bool)

	err := filepath.Walk("internal/source", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return err
		}

		ast.Inspect(file, func(n ast.Node) bool {
			// Calls like NewSource("input_id", ...) declare the ID as the
			// first string argument.
			if call, ok := n.(*ast.CallExpr); ok {
				if fun, ok := call.Fun.(*ast.Ident); ok && strings.Contains(fun.Name, "Source") {
					if len(call.Args) > 0 {
						if lit, ok := call.Args[0].(*ast.BasicLit); ok && lit.Kind == token.STRING {
							provided[strings.Trim(lit.Value, "\"")] = true
						}
					}
				}
			}

			// Describe methods return Schema{ID: "..."}.
			if funcDecl, ok := n.(*ast.FuncDecl); ok {
				if funcDecl.Name.Name == "Describe" && funcDecl.Recv != nil && funcDecl.Body != nil {
					src, err := os.ReadFile(path)
					if err != nil {
						return true
					}

					r := regexp.MustCompile(`Schema\{ID:\s*"([^"]+)"`)
					ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
						ret, ok := n.(*ast.ReturnStmt)
						if !ok || len(ret.Results) == 0 || ret.Results[0] == nil {
							return true
						}
						pos := fset.Position(ret.Results[0].Pos())
						end := fset.Position(ret.Results[0].End())
						if pos.Offset >= 0 && end.Offset <= len(src) {
							matches := r.FindStringSubmatch(string(src[pos.Offset:end.Offset]))
							if len(matches) > 1 {
								provided[matches[1]] = true
							}
						}
						return true
					})
				}
			}
			return true
		})
		return nil
	})

	return provided, err
}

func main() {
	required, err := getRequiredInputs("policy/schema/input.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading required inputs: %v\n", err)
		os.Exit(1)
	}

	provided, err := getProvidedInputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning sources: %v\n", err)
		os.Exit(1)
	}

	missing := []string{}
	for inputID := range required {
		if !provided[inputID] {
			missing = append(missing, inputID)
		}
	}

	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "ERROR: The following required policy inputs have no source implementations:\n")
		for _, inputID := range missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", inputID)
		}
		os.Exit(1)
	}

	fmt.Println("SUCCESS: All required policy inputs have source implementations.")
}
