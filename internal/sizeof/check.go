package sizeof

import (
	"fmt"
	"sort"
)

// Finding is a layout rule the device's answer violates.
type Finding struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (f Finding) String() string { return f.Type + ": " + f.Message }

// Check validates a report against the padding rules of OpenCL C:
//   - a struct with aligned(N) has a size that is a multiple of N
//   - a struct is never larger than its aligned twin (same members)
//   - every size matches the host layout model, except implementation-defined types
func Check(r *Report, types TypeList) []Finding {
	var findings []Finding
	sizes := r.Sizes()

	for _, t := range types {
		got, ok := sizes[t.Name]
		if !ok {
			continue
		}

		if t.Kind == KindStruct && t.Aligned > 0 && int(got)%t.Aligned != 0 {
			findings = append(findings, Finding{
				Type:    t.Name,
				Message: fmt.Sprintf("size %d is not a multiple of its %d-byte alignment", got, t.Aligned),
			})
		}

		if want := Size(t); !t.ImplDefined && int(got) != want {
			findings = append(findings, Finding{
				Type:    t.Name,
				Message: fmt.Sprintf("device reports %d bytes, layout model expects %d", got, want),
			})
		}
	}

	for _, pair := range alignedTwins(types) {
		plain, okPlain := sizes[pair.plain.Name]
		aligned, okAligned := sizes[pair.aligned.Name]
		if okPlain && okAligned && plain > aligned {
			findings = append(findings, Finding{
				Type:    pair.plain.Name,
				Message: fmt.Sprintf("size %d exceeds %s size %d", plain, pair.aligned.Name, aligned),
			})
		}
	}

	return findings
}

type twin struct {
	plain, aligned *Type
}

// alignedTwins pairs each aligned struct with the unattributed structs that
// declare the same members.
func alignedTwins(types TypeList) []twin {
	var out []twin
	for _, a := range types {
		if a.Kind != KindStruct || a.Aligned == 0 {
			continue
		}
		for _, p := range types {
			if p.Kind == KindStruct && p.Aligned == 0 && sameFields(p.Fields, a.Fields) {
				out = append(out, twin{plain: p, aligned: a})
			}
		}
	}
	return out
}

func sameFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type.Name != b[i].Type.Name {
			return false
		}
	}
	return true
}

// Difference is a size that changed between a baseline and a new report.
// A zero Was or Now means the type is missing on that side.
type Difference struct {
	Name string `json:"name"`
	Was  uint32 `json:"was"`
	Now  uint32 `json:"now"`
}

// Compare lists per-type differences between baseline and r, sorted by name.
func Compare(r, baseline *Report) []Difference {
	now := r.Sizes()
	was := baseline.Sizes()

	var diffs []Difference
	for name, n := range now {
		if w, ok := was[name]; !ok || w != n {
			diffs = append(diffs, Difference{Name: name, Was: w, Now: n})
		}
	}
	for name, w := range was {
		if _, ok := now[name]; !ok {
			diffs = append(diffs, Difference{Name: name, Was: w})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Name < diffs[j].Name })
	return diffs
}
