package sizeof

import (
	"fmt"
	"strings"

	"github.com/cwbudde/clsizeof/internal/compute"
)

// KernelName is the entry point of the generated program.
const KernelName = "ksizeof"

// Source generates the size-report program for the given dialect. The kernel
// writes sizeof(T) for each type in list order into c, never more than num
// entries, and stores the number written in *ret.
func Source(types TypeList, dialect compute.Dialect) (string, error) {
	var b strings.Builder

	for _, st := range types.Structs() {
		writeTypedef(&b, st)
		b.WriteString("\n")
	}

	switch dialect {
	case compute.DialectOpenCLC, "":
		fmt.Fprintf(&b, "__kernel void %s(__global uint *c, uint num, __global uint *ret) {\n", KernelName)
		writeBody(&b, types, "  ", "uint")
		b.WriteString("  *ret = n;\n")
		b.WriteString("}\n")
	case compute.DialectOKL:
		fmt.Fprintf(&b, "@kernel void %s(unsigned int *c, const unsigned int num, unsigned int *ret) {\n", KernelName)
		b.WriteString("  for (int block = 0; block < 1; ++block; @outer) {\n")
		b.WriteString("    for (int item = 0; item < 1; ++item; @inner) {\n")
		writeBody(&b, types, "      ", "unsigned int")
		b.WriteString("      ret[0] = n;\n")
		b.WriteString("    }\n")
		b.WriteString("  }\n")
		b.WriteString("}\n")
	default:
		return "", fmt.Errorf("no kernel source for dialect %q", dialect)
	}

	return b.String(), nil
}

func writeTypedef(b *strings.Builder, st *Type) {
	b.WriteString("typedef struct {\n")
	for _, f := range st.Fields {
		fmt.Fprintf(b, "  %s %s;\n", f.Type.Name, f.Name)
	}
	if st.Aligned > 0 {
		fmt.Fprintf(b, "} __attribute__((aligned(%d))) %s;\n", st.Aligned, st.Name)
	} else {
		fmt.Fprintf(b, "} %s;\n", st.Name)
	}
}

func writeBody(b *strings.Builder, types TypeList, indent, uintType string) {
	fmt.Fprintf(b, "%s%s n = 0;\n", indent, uintType)
	for _, t := range types {
		fmt.Fprintf(b, "%sif (n < num) c[n++] = (%s)sizeof(%s);\n", indent, uintType, t.Name)
	}
}
