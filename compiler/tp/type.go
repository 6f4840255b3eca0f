package tp

type (
	Kind int

	// Type is a JMM static type. Arrays are one level deep,
	// class types are equal only by name.
	Type struct {
		Kind  Kind
		Class string
		Array bool
	}
)

const (
	Unknown Kind = iota
	Int
	Bool
	String
	Void
	Class
)

var (
	UnknownType = Type{Kind: Unknown}
	IntType     = Type{Kind: Int}
	BoolType    = Type{Kind: Bool}
	StringType  = Type{Kind: String}
	VoidType    = Type{Kind: Void}
	IntArray    = Type{Kind: Int, Array: true}
	StringArray = Type{Kind: String, Array: true}
)

func ClassType(name string) Type {
	return Type{Kind: Class, Class: name}
}

// Named maps a source type name to a Type.
func Named(name string, array bool) Type {
	var t Type

	switch name {
	case "int":
		t = IntType
	case "boolean":
		t = BoolType
	case "String":
		t = StringType
	case "void":
		t = VoidType
	default:
		t = ClassType(name)
	}

	t.Array = array

	return t
}

func (t Type) IsArray() bool { return t.Array }

func (t Type) IsUnknown() bool { return t.Kind == Unknown }

func (t Type) IsClass() bool { return t.Kind == Class && !t.Array }

func (t Type) IsVoid() bool { return t.Kind == Void && !t.Array }

// IsRef reports whether values of t are JVM references.
func (t Type) IsRef() bool {
	return t.Array || t.Kind == String || t.Kind == Class
}

func (t Type) Elem() Type {
	t.Array = false
	return t
}

func (t Type) ArrayOf() Type {
	t.Array = true
	return t
}

func (t Type) String() string {
	var s string

	switch t.Kind {
	case Int:
		s = "int"
	case Bool:
		s = "boolean"
	case String:
		s = "String"
	case Void:
		s = "void"
	case Class:
		s = t.Class
	default:
		s = "unknown"
	}

	if t.Array {
		s += "[]"
	}

	return s
}

func (k Kind) String() string {
	return Type{Kind: k}.String()
}
