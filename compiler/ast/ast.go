package ast

type (
	// Node is a closed set: only types in this package implement it.
	Node interface {
		Position() Pos
		node()
	}

	Stmt interface {
		Node
		stmt()
	}

	Expr interface {
		Node
		expr()
	}

	Pos struct {
		Line int
		Col  int
	}

	Base struct {
		Pos Pos
	}

	File struct {
		Base `tlog:",embed"`

		Imports []*Import
		Class   *Class
	}

	Import struct {
		Base `tlog:",embed"`

		Path []string
	}

	Class struct {
		Base `tlog:",embed"`

		Name    string
		Extends string

		Fields  []*VarDecl
		Methods []*Method
	}

	TypeExpr struct {
		Base `tlog:",embed"`

		Name  string
		Array bool
	}

	VarDecl struct {
		Base `tlog:",embed"`

		Type *TypeExpr
		Name string
	}

	Method struct {
		Base `tlog:",embed"`

		Static bool
		Return *TypeExpr
		Name   string
		Params []*VarDecl
		Locals []*VarDecl
		Body   []Stmt

		Result Expr // nil for void methods
	}

	// Statements

	Block struct {
		Base `tlog:",embed"`

		Stmts []Stmt
	}

	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body Stmt
	}

	Assign struct {
		Base `tlog:",embed"`

		Target *Ident
		Value  Expr
	}

	ArrayAssign struct {
		Base `tlog:",embed"`

		Target *Ident
		Index  Expr
		Value  Expr
	}

	ExprStmt struct {
		Base `tlog:",embed"`

		X Expr
	}

	// Expressions

	Op string

	Binary struct {
		Base `tlog:",embed"`

		Op    Op
		Left  Expr
		Right Expr
	}

	Not struct {
		Base `tlog:",embed"`

		X Expr
	}

	Index struct {
		Base `tlog:",embed"`

		X     Expr
		Index Expr
	}

	Length struct {
		Base `tlog:",embed"`

		X Expr
	}

	Call struct {
		Base `tlog:",embed"`

		Recv   Expr
		Method string
		Args   []Expr
	}

	IntLit struct {
		Base `tlog:",embed"`

		Value int32
	}

	BoolLit struct {
		Base `tlog:",embed"`

		Value bool
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}

	This struct {
		Base `tlog:",embed"`
	}

	NewArray struct {
		Base `tlog:",embed"`

		Len Expr
	}

	NewObject struct {
		Base `tlog:",embed"`

		Class string
	}
)

const (
	And Op = "&&"
	Lt  Op = "<"
	Add Op = "+"
	Sub Op = "-"
	Mul Op = "*"
	Div Op = "/"
)

func (b Base) Position() Pos { return b.Pos }

func (Base) node() {}

func (*Block) stmt()       {}
func (*If) stmt()          {}
func (*While) stmt()       {}
func (*Assign) stmt()      {}
func (*ArrayAssign) stmt() {}
func (*ExprStmt) stmt()    {}

func (*Binary) expr()    {}
func (*Not) expr()       {}
func (*Index) expr()     {}
func (*Length) expr()    {}
func (*Call) expr()      {}
func (*IntLit) expr()    {}
func (*BoolLit) expr()   {}
func (*Ident) expr()     {}
func (*This) expr()      {}
func (*NewArray) expr()  {}
func (*NewObject) expr() {}

func At(line, col int) Base {
	return Base{Pos: Pos{Line: line, Col: col}}
}

// IsMain reports whether m is the program entry point.
func (m *Method) IsMain() bool {
	return m.Static && m.Name == "main"
}

func (p *Import) Name() string {
	if len(p.Path) == 0 {
		return ""
	}

	return p.Path[len(p.Path)-1]
}
