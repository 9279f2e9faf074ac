package sizeof

import "strconv"

// Kind classifies a device type.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindStruct
)

// Type describes an OpenCL C type whose size the device is asked to report.
type Type struct {
	Name string
	Kind Kind

	// scalar
	size int
	// ImplDefined marks types whose size the language leaves to the
	// implementation (bool); they are reported but never flagged.
	ImplDefined bool

	// vector
	Elem  *Type
	Width int

	// struct
	Fields []Field
	// Aligned is the explicit __attribute__((aligned(N))) value, 0 if none.
	Aligned int
}

// Field is a named struct member.
type Field struct {
	Name string
	Type *Type
}

// Scalar declares a built-in scalar type.
func Scalar(name string, size int) *Type {
	return &Type{Name: name, Kind: KindScalar, size: size}
}

// Vector declares the built-in vector type elemN.
func Vector(elem *Type, width int) *Type {
	return &Type{
		Name:  elem.Name + strconv.Itoa(width),
		Kind:  KindVector,
		Elem:  elem,
		Width: width,
	}
}

// Struct declares a typedef'd struct. aligned is the attribute value or 0.
func Struct(name string, aligned int, fields ...Field) *Type {
	return &Type{
		Name:    name,
		Kind:    KindStruct,
		Fields:  fields,
		Aligned: aligned,
	}
}

var (
	Bool  = &Type{Name: "bool", Kind: KindScalar, size: 1, ImplDefined: true}
	Char  = Scalar("char", 1)
	Short = Scalar("short", 2)
	Int   = Scalar("int", 4)
	Long  = Scalar("long", 8)
	Float = Scalar("float", 4)

	Float2 = Vector(Float, 2)
	Float3 = Vector(Float, 3)
	Float4 = Vector(Float, 4)

	// Sphere is 32 bytes: the float3 occupies 16.
	Sphere = Struct("Sphere", 0,
		Field{"origin", Float3},
		Field{"r", Float},
		Field{"dis", Float2},
	)

	// Ray is 128 bytes without any attribute; RayAligned forces 16-byte alignment.
	Ray        = Struct("Ray", 0, rayFields()...)
	RayAligned = Struct("RayAligned", 16, rayFields()...)
)

func rayFields() []Field {
	return []Field{
		{"origin", Float3},
		{"dir", Float3},
		{"nor", Float3},
		{"col", Float4},
		{"fovfactor", Float},
		{"t", Float},
		{"rgb", Float3},
		{"sph", Sphere},
	}
}

// TypeList is the ordered list of types queried by the kernel. The kernel
// writes the Nth size for the Nth entry.
type TypeList []*Type

// DefaultTypes returns the 24 types of the stock size report.
func DefaultTypes() TypeList {
	return TypeList{
		Bool,
		Char, Vector(Char, 2), Vector(Char, 3), Vector(Char, 4),
		Short, Vector(Short, 2), Vector(Short, 3), Vector(Short, 4),
		Int, Vector(Int, 2), Vector(Int, 3), Vector(Int, 4),
		Long, Vector(Long, 2), Vector(Long, 3), Vector(Long, 4),
		Float, Float2, Float3, Float4,
		Sphere,
		Ray, RayAligned,
	}
}

// Names returns the type names in kernel write order.
func (l TypeList) Names() []string {
	names := make([]string, len(l))
	for i, t := range l {
		names[i] = t.Name
	}
	return names
}

// Lookup finds a type by name.
func (l TypeList) Lookup(name string) (*Type, bool) {
	for _, t := range l {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Structs returns every struct reachable from the list, dependencies first,
// each once. This is the typedef emission order.
func (l TypeList) Structs() []*Type {
	var out []*Type
	seen := map[*Type]bool{}

	var visit func(t *Type)
	visit = func(t *Type) {
		if t.Kind != KindStruct || seen[t] {
			return
		}
		seen[t] = true
		for _, f := range t.Fields {
			visit(f.Type)
		}
		out = append(out, t)
	}

	for _, t := range l {
		visit(t)
	}
	return out
}
