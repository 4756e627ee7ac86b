package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// unit is a run of lines (inclusive, 1-based) that should stay together.
type unit struct {
	from, to int
	name     string
}

// chunkCode splits source code on top-level declarations and packs adjacent
// declarations up to the limits. Go is parsed; other languages are split on
// blocks that start at column zero after a blank line.
func (e *Engine) chunkCode(d *doc, ext string, lim domain.ChunkLimits) []span {
	var units []unit
	if ext == ".go" {
		units = goUnits(d)
	}
	if units == nil {
		units = blockUnits(d)
	}
	return e.packUnits(d, units, lim)
}

// packUnits greedily packs units into spans. A unit that alone exceeds the
// limits is split into overlapping line windows.
func (e *Engine) packUnits(d *doc, units []unit, lim domain.ChunkLimits) []span {
	fits := func(from, to int) bool {
		if lim.MaxLines > 0 && to-from+1 > lim.MaxLines {
			return false
		}
		s, end := d.lineRange(from, to)
		return d.runes(s, end) <= lim.MaxChars
	}

	var out []span
	curFrom, curTo := 0, 0
	curName := ""
	flush := func() {
		if curFrom == 0 {
			return
		}
		s, end := d.lineRange(curFrom, curTo)
		out = d.appendSpan(out, s, end, curName)
		curFrom, curTo, curName = 0, 0, ""
	}

	for _, u := range units {
		if !fits(u.from, u.to) {
			flush()
			out = append(out, d.windowLines(u.from, u.to, lim, e.overlap, u.name)...)
			continue
		}
		if curFrom != 0 && !fits(curFrom, u.to) {
			flush()
		}
		if curFrom == 0 {
			curFrom, curName = u.from, u.name
		}
		if curName == "" {
			curName = u.name
		}
		curTo = u.to
	}
	flush()
	return out
}

// goUnits splits a Go file at each top-level declaration, with its doc
// comment. The package clause and any leading comments form the first unit.
// Returns nil if the file does not parse.
func goUnits(d *doc) []unit {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", d.text, parser.ParseComments)
	if err != nil || len(f.Decls) == 0 {
		return nil
	}

	type boundary struct {
		line int
		name string
	}
	starts := []boundary{{line: 1, name: "package " + f.Name.Name}}
	for _, decl := range f.Decls {
		pos := decl.Pos()
		if doc := declDoc(decl); doc != nil {
			pos = doc.Pos()
		}
		line := fset.Position(pos).Line
		if line <= starts[len(starts)-1].line {
			starts[len(starts)-1].name = declName(decl)
			continue
		}
		starts = append(starts, boundary{line: line, name: declName(decl)})
	}

	last := len(d.lines)
	units := make([]unit, 0, len(starts))
	for i, b := range starts {
		to := last
		if i+1 < len(starts) {
			to = starts[i+1].line - 1
		}
		units = append(units, unit{from: b.line, to: to, name: b.name})
	}
	return units
}

func declDoc(decl ast.Decl) *ast.CommentGroup {
	switch v := decl.(type) {
	case *ast.FuncDecl:
		return v.Doc
	case *ast.GenDecl:
		return v.Doc
	default:
		return nil
	}
}

// declName names a declaration for chunk metadata ("func Run", "type Engine").
func declName(decl ast.Decl) string {
	switch v := decl.(type) {
	case *ast.FuncDecl:
		if v.Recv != nil && len(v.Recv.List) > 0 {
			return "func (" + recvName(v.Recv.List[0].Type) + ") " + v.Name.Name
		}
		return "func " + v.Name.Name
	case *ast.GenDecl:
		if len(v.Specs) == 0 {
			return v.Tok.String()
		}
		switch s := v.Specs[0].(type) {
		case *ast.TypeSpec:
			return "type " + s.Name.Name
		case *ast.ValueSpec:
			if len(s.Names) > 0 {
				return v.Tok.String() + " " + s.Names[0].Name
			}
		case *ast.ImportSpec:
			return "import"
		}
		return v.Tok.String()
	default:
		return ""
	}
}

func recvName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return "*" + recvName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return recvName(t.X)
	case *ast.IndexListExpr:
		return recvName(t.X)
	default:
		return ""
	}
}

// blockUnits splits at lines that start in column zero right after a blank
// line. Closing brackets never start a block.
func blockUnits(d *doc) []unit {
	last := len(d.lines)
	var units []unit
	from := 1
	for n := 2; n <= last; n++ {
		if !d.blank(n-1) || d.blank(n) {
			continue
		}
		line := d.lineText(n)
		if strings.IndexAny(line[:1], " \t}])") == 0 {
			continue
		}
		units = append(units, unit{from: from, to: n - 1})
		from = n
	}
	return append(units, unit{from: from, to: last})
}
