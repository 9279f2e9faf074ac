package sizeof

// Size returns sizeof(t) under OpenCL C layout rules: 3-component vectors
// occupy four components, vectors align to their size, and a struct's size
// is padded to its largest member alignment or its aligned attribute.
func Size(t *Type) int {
	switch t.Kind {
	case KindScalar:
		return t.size
	case KindVector:
		return Size(t.Elem) * storedWidth(t.Width)
	case KindStruct:
		end := 0
		for _, off := range Offsets(t) {
			end = off.Offset + Size(off.Field.Type)
		}
		return roundUp(end, Align(t))
	default:
		return 0
	}
}

// Align returns the alignment of t in bytes.
func Align(t *Type) int {
	switch t.Kind {
	case KindScalar, KindVector:
		return Size(t)
	case KindStruct:
		align := 1
		for _, f := range t.Fields {
			if a := Align(f.Type); a > align {
				align = a
			}
		}
		if t.Aligned > align {
			align = t.Aligned
		}
		return align
	default:
		return 1
	}
}

// FieldOffset places a struct member.
type FieldOffset struct {
	Field  Field
	Offset int
}

// Offsets lays out the members of a struct type in declaration order.
func Offsets(t *Type) []FieldOffset {
	if t.Kind != KindStruct {
		return nil
	}
	out := make([]FieldOffset, 0, len(t.Fields))
	offset := 0
	for _, f := range t.Fields {
		offset = roundUp(offset, Align(f.Type))
		out = append(out, FieldOffset{Field: f, Offset: offset})
		offset += Size(f.Type)
	}
	return out
}

func storedWidth(n int) int {
	if n == 3 {
		return 4
	}
	return n
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
