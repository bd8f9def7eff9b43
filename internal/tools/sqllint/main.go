// sqllint checks that every SQL string constant starts with a unique
// "--sql <uuid>" marker, which SQLRunner requires at runtime.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"adora/internal/infra"
)

var sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create)\b`)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type sqlConst struct {
	file   string
	name   string
	line   int
	marker string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	flagSet := pflag.NewFlagSet("sqllint", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	allowDup := flagSet.Bool("allow-duplicates", false, "do not report markers shared by several constants")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	targets := flagSet.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var violations []violation
	var consts []sqlConst
	for _, target := range targets {
		vs, cs, err := lintTarget(target)
		if err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 1
		}
		violations = append(violations, vs...)
		consts = append(consts, cs...)
	}
	if !*allowDup {
		violations = append(violations, duplicates(consts)...)
	}

	if len(violations) > 0 {
		fmt.Fprintln(stderr, "sqllint: SQL audit marker problems")
		for _, v := range violations {
			fmt.Fprintf(stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		return 1
	}
	return 0
}

func lintTarget(target string) ([]violation, []sqlConst, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil, nil, nil
		}
		return lintFile(target)
	}
	var violations []violation
	var consts []sqlConst
	err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		vs, cs, err := lintFile(path)
		if err != nil {
			return err
		}
		violations = append(violations, vs...)
		consts = append(consts, cs...)
		return nil
	})
	return violations, consts, err
}

func lintFile(path string) ([]violation, []sqlConst, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, err
	}
	var violations []violation
	var consts []sqlConst
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			name := joinNames(vs.Names)
			if i < len(vs.Names) {
				name = vs.Names[i].Name
			}
			line := fset.Position(bl.Pos()).Line
			marker, _, err := infra.ExtractMarker(raw)
			if err != nil {
				if strings.HasPrefix(strings.TrimSpace(raw), "--sql") || looksLikeStatement(raw) {
					violations = append(violations, violation{file: path, line: line, name: name, message: "missing or invalid --sql <uuid> marker"})
				}
				continue
			}
			consts = append(consts, sqlConst{file: path, name: name, line: line, marker: marker})
		}
		return true
	})
	return violations, consts, nil
}

// looksLikeStatement filters prose that merely contains an SQL keyword.
func looksLikeStatement(s string) bool {
	first := strings.Fields(strings.TrimSpace(s))
	if len(first) == 0 {
		return false
	}
	return sqlKeywordPattern.MatchString(first[0])
}

func duplicates(consts []sqlConst) []violation {
	first := make(map[string]sqlConst, len(consts))
	var out []violation
	for _, c := range consts {
		if prev, ok := first[c.marker]; ok {
			out = append(out, violation{
				file:    c.file,
				line:    c.line,
				name:    c.name,
				message: fmt.Sprintf("marker %s already used by %s", c.marker, prev.name),
			})
			continue
		}
		first[c.marker] = c
	}
	return out
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
