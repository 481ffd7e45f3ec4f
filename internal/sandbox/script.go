package sandbox

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

var (
	// ErrForbiddenImport marks a script importing a package outside the allow-list.
	ErrForbiddenImport = errors.New("forbidden import")
	// ErrGoroutine marks a script that starts goroutines.
	ErrGoroutine = errors.New("go statements are not allowed")
	// ErrNoMain marks a script without func main.
	ErrNoMain = errors.New("script must define func main()")
)

const snapshotAlias = "analystdf"

// prepare validates a script and binds df. The script is a main package; a
// bare statement list is wrapped in func main first. The dataset import is
// spliced onto the package clause line and the df declaration appended at
// the end, so line numbers in error messages match what the planner wrote.
func prepare(code string, allowed map[string]bool) (string, error) {
	src := code
	if !hasPackageClause(src) {
		src = wrapScript(src)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "script.go", src, parser.SkipObjectResolution)
	if err != nil {
		return "", err
	}
	if file.Name.Name != "main" {
		return "", fmt.Errorf("script must be package main, got package %s", file.Name.Name)
	}
	if err := checkImports(file, allowed); err != nil {
		return "", err
	}
	if err := checkStatements(fset, file); err != nil {
		return "", err
	}
	if !hasMain(file) {
		return "", ErrNoMain
	}
	if declaresDF(file) {
		return src, nil
	}

	at := fset.Position(file.Name.End()).Offset
	var sb strings.Builder
	sb.WriteString(src[:at])
	fmt.Fprintf(&sb, "; import %s %q", snapshotAlias, DatasetImport)
	sb.WriteString(src[at:])
	fmt.Fprintf(&sb, "\nvar df = %s.Snapshot()\n", snapshotAlias)
	return sb.String(), nil
}

func hasPackageClause(code string) bool {
	_, err := parser.ParseFile(token.NewFileSet(), "", code, parser.PackageClauseOnly)
	return err == nil
}

// wrapScript turns a statement list into a main package. Leading import
// declarations stay at file level; everything else becomes the body of main.
// A list that already declares func main only needs the package clause.
func wrapScript(code string) string {
	withPkg := "package main\n" + code
	if f, err := parser.ParseFile(token.NewFileSet(), "", withPkg, parser.SkipObjectResolution); err == nil && hasMain(f) {
		return withPkg
	}

	lines := strings.Split(code, "\n")
	var head []string
	i := 0
	inBlock := false
scan:
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case inBlock:
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
			}
		case trimmed == "" || strings.HasPrefix(trimmed, "//"):
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case strings.HasPrefix(trimmed, "import "):
		default:
			break scan
		}
		head = append(head, lines[i])
	}

	var sb strings.Builder
	sb.WriteString("package main\n")
	for _, l := range head {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString("func main() {\n")
	sb.WriteString(strings.Join(lines[i:], "\n"))
	sb.WriteString("\n}\n")
	return sb.String()
}

func checkImports(file *ast.File, allowed map[string]bool) error {
	var forbidden []string
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("bad import %s: %w", imp.Path.Value, err)
		}
		if path == DatasetImport || path == StatsImport {
			continue
		}
		if Blocked(path) || !allowed[path] {
			forbidden = append(forbidden, strconv.Quote(path))
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("%w: %s (allowed: %s, %s, %s)", ErrForbiddenImport,
			strings.Join(forbidden, ", "), DatasetImport, StatsImport,
			strings.Join(sortedKeys(allowed), ", "))
	}
	return nil
}

func checkStatements(fset *token.FileSet, file *ast.File) error {
	var found token.Pos
	ast.Inspect(file, func(n ast.Node) bool {
		if found.IsValid() {
			return false
		}
		if g, ok := n.(*ast.GoStmt); ok {
			found = g.Pos()
			return false
		}
		return true
	})
	if found.IsValid() {
		return fmt.Errorf("%s: %w", fset.Position(found), ErrGoroutine)
	}
	return nil
}

func hasMain(file *ast.File) bool {
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.Name == "main" {
			return true
		}
	}
	return false
}

func declaresDF(file *ast.File) bool {
	for _, d := range file.Decls {
		switch decl := d.(type) {
		case *ast.FuncDecl:
			if decl.Recv == nil && decl.Name.Name == "df" {
				return true
			}
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				switch s := spec.(type) {
				case *ast.ValueSpec:
					for _, n := range s.Names {
						if n.Name == "df" {
							return true
						}
					}
				case *ast.TypeSpec:
					if s.Name.Name == "df" {
						return true
					}
				}
			}
		}
	}
	return false
}
