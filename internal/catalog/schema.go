package catalog

// Columns names the source column that carries each required field.
type Columns [NumFields]string

// DefaultColumns are the Gaia DR3 gaia_source column names.
var DefaultColumns = Columns{
	PrimaryID:  "source_id",
	RA:         "ra",
	Dec:        "dec",
	Parallax:   "parallax",
	Magnitude:  "phot_g_mean_mag",
	ColorIndex: "bp_rp",
}

// Names returns the configured column names in Field order.
func (c Columns) Names() []string {
	out := make([]string, 0, NumFields)
	for _, f := range Fields() {
		out = append(out, c[f])
	}
	return out
}

// Schema maps every required field to its column position in the current
// chunk. It is valid for one chunk only; column order is not stable across
// chunks.
type Schema struct {
	idx     [NumFields]int
	missing []string
}

// Resolve builds a Schema from a chunk header. Matching is exact and
// case-sensitive; when a name occurs twice the first column wins. Fields
// without a matching column stay unresolved.
func Resolve(header []string, cols Columns) Schema {
	var s Schema
	for i := range s.idx {
		s.idx[i] = -1
	}
	for pos, name := range header {
		for _, f := range Fields() {
			if s.idx[f] < 0 && cols[f] != "" && cols[f] == name {
				s.idx[f] = pos
			}
		}
	}
	for _, f := range Fields() {
		if s.idx[f] < 0 {
			s.missing = append(s.missing, cols[f])
		}
	}
	return s
}

// Index returns the column position of f and whether it was resolved.
func (s Schema) Index(f Field) (int, bool) {
	i := s.idx[f]
	return i, i >= 0
}

// Resolved reports whether every required field has a column.
func (s Schema) Resolved() bool { return len(s.missing) == 0 }

// Missing lists the column names that were not found in the header.
func (s Schema) Missing() []string {
	return append([]string(nil), s.missing...)
}
