package sym

import (
	"context"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/ast"
	"github.com/slowlang/jmm/compiler/report"
	"github.com/slowlang/jmm/compiler/tp"
)

type (
	Symbol struct {
		Name string
		Type tp.Type
		Line int
	}

	Method struct {
		Name   string
		Static bool
		Return tp.Type
		Params []Symbol
		Locals []Symbol
		Line   int

		Decl *ast.Method
	}

	// Table is the known shape of the compiled class.
	// It is built once and not modified afterwards.
	Table struct {
		Class   string
		Super   string
		Imports []string

		Fields  []Symbol
		Methods []*Method

		fields  map[string]int
		methods map[string][]*Method
		imports map[string]string
	}
)

func Build(ctx context.Context, f *ast.File) (t *Table, rep report.List) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "sym: build")
	defer func() {
		tr.Finish("reports", len(rep))
	}()

	if f == nil || f.Class == nil {
		rep.Errorf(report.Semantic, 0, 0, "no class declaration")
		return nil, rep
	}

	c := f.Class

	t = &Table{
		Class: c.Name,
		Super: c.Extends,

		fields:  map[string]int{},
		methods: map[string][]*Method{},
		imports: map[string]string{},
	}

	for _, imp := range f.Imports {
		q := strings.Join(imp.Path, ".")
		name := imp.Name()

		if prev, ok := t.imports[name]; ok {
			if prev != q {
				rep.Errorf(report.Semantic, imp.Pos.Line, imp.Pos.Col, "import %v conflicts with %v", q, prev)
			}

			continue
		}

		t.imports[name] = q
		t.Imports = append(t.Imports, q)
	}

	for _, d := range c.Fields {
		if _, ok := t.fields[d.Name]; ok {
			rep.Errorf(report.Semantic, d.Pos.Line, d.Pos.Col, "duplicate field: %v", d.Name)
			continue
		}

		t.fields[d.Name] = len(t.Fields)
		t.Fields = append(t.Fields, Symbol{Name: d.Name, Type: typeOf(d.Type), Line: d.Pos.Line})
	}

	for _, d := range c.Methods {
		m := &Method{
			Name:   d.Name,
			Static: d.Static,
			Return: typeOf(d.Return),
			Line:   d.Pos.Line,
			Decl:   d,
		}

		names := map[string]struct{}{}

		add := func(l []Symbol, v *ast.VarDecl, what string) []Symbol {
			if _, ok := names[v.Name]; ok {
				rep.Errorf(report.Semantic, v.Pos.Line, v.Pos.Col, "duplicate %v %v in method %v", what, v.Name, d.Name)
				return l
			}

			names[v.Name] = struct{}{}

			return append(l, Symbol{Name: v.Name, Type: typeOf(v.Type), Line: v.Pos.Line})
		}

		for _, p := range d.Params {
			m.Params = add(m.Params, p, "parameter")
		}

		for _, l := range d.Locals {
			m.Locals = add(m.Locals, l, "variable")
		}

		sig := m.Signature()

		if prev := t.Method(sig); prev != nil {
			rep.Errorf(report.Semantic, d.Pos.Line, d.Pos.Col, "duplicate method %v (first declared at line %d)", sig, prev.Line)
			continue
		}

		t.methods[m.Name] = append(t.methods[m.Name], m)
		t.Methods = append(t.Methods, m)
	}

	if tr.If("dump_symbols") {
		tr.Printw("symbols", "class", t.Class, "super", t.Super, "imports", t.Imports, "fields", len(t.Fields), "methods", len(t.Methods))
	}

	return t, rep
}

func typeOf(x *ast.TypeExpr) tp.Type {
	return tp.Named(x.Name, x.Array)
}

func (t *Table) Field(name string) (Symbol, bool) {
	i, ok := t.fields[name]
	if !ok {
		return Symbol{}, false
	}

	return t.Fields[i], true
}

// MethodsNamed returns all overloads of name in declaration order.
func (t *Table) MethodsNamed(name string) []*Method {
	return t.methods[name]
}

func (t *Table) Method(sig string) *Method {
	name, _, _ := strings.Cut(sig, "(")

	for _, m := range t.methods[name] {
		if m.Signature() == sig {
			return m
		}
	}

	return nil
}

// Import returns the qualified name imported under the simple name.
func (t *Table) Import(name string) (string, bool) {
	q, ok := t.imports[name]
	return q, ok
}

func (t *Table) IsImported(name string) bool {
	_, ok := t.imports[name]
	return ok
}

// SuperImported reports whether the superclass can only be reached
// through an import, so its members can't be inspected.
func (t *Table) SuperImported() bool {
	return t.Super != "" && t.Super != t.Class && t.IsImported(t.Super)
}

// KnownClass reports whether name denotes the compiled class or an imported one.
func (t *Table) KnownClass(name string) bool {
	return name == t.Class || t.IsImported(name)
}

// Extends reports whether class sub is the same as or inherits from class super
// along the declared extends chain.
func (t *Table) Extends(sub, super string) bool {
	if sub == super {
		return true
	}

	return sub == t.Class && t.Super != "" && t.Super == super
}

func (m *Method) ParamTypes() []tp.Type {
	r := make([]tp.Type, len(m.Params))

	for i, p := range m.Params {
		r[i] = p.Type
	}

	return r
}

func (m *Method) Signature() string {
	return Signature(m.Name, m.ParamTypes())
}

func Signature(name string, params []tp.Type) string {
	var b strings.Builder

	b.WriteString(name)
	b.WriteByte('(')

	for i, p := range params {
		if i != 0 {
			b.WriteByte(',')
		}

		b.WriteString(p.String())
	}

	b.WriteByte(')')

	return b.String()
}

func (m *Method) Var(name string) (Symbol, bool) {
	for _, l := range m.Locals {
		if l.Name == name {
			return l, true
		}
	}

	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}

	return Symbol{}, false
}

func (m *Method) IsParam(name string) bool {
	for _, p := range m.Params {
		if p.Name == name {
			return true
		}
	}

	return false
}

// Print renders the human-readable symbol table listing.
func (t *Table) Print(b []byte) []byte {
	b = hfmt.Appendf(b, "class %v\n", t.Class)

	if t.Super != "" {
		b = hfmt.Appendf(b, "extends %v\n", t.Super)
	}

	b = hfmt.Appendf(b, "\nimports (%d)\n", len(t.Imports))

	for _, q := range t.Imports {
		b = hfmt.Appendf(b, "\t%v\n", q)
	}

	b = hfmt.Appendf(b, "\nfields (%d)\n", len(t.Fields))

	for _, f := range t.Fields {
		b = hfmt.Appendf(b, "\t%v %v\n", f.Type, f.Name)
	}

	b = hfmt.Appendf(b, "\nmethods (%d)\n", len(t.Methods))

	for _, m := range t.Methods {
		static := ""
		if m.Static {
			static = "static "
		}

		b = hfmt.Appendf(b, "\t%v%v %v\n", static, m.Return, m.Signature())

		for _, p := range m.Params {
			b = hfmt.Appendf(b, "\t\tparam %v %v\n", p.Type, p.Name)
		}

		for _, l := range m.Locals {
			b = hfmt.Appendf(b, "\t\tlocal %v %v\n", l.Type, l.Name)
		}
	}

	return b
}
