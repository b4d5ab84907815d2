package catalog

import "errors"

// Lookup resolves a primary identifier to a secondary catalogue identifier.
// Implementations must be safe for concurrent reads.
type Lookup interface {
	Lookup(primaryID string) (string, bool)
}

// Reason classifies why a row did or did not become a record. The string
// form doubles as the metrics "kind" label.
type Reason uint8

const (
	Accepted Reason = iota
	RejectUnresolved
	RejectShortRow
	RejectNullField
	RejectBadMagnitude
)

func (r Reason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectUnresolved:
		return "unresolved"
	case RejectShortRow:
		return "short_row"
	case RejectNullField:
		return "null_field"
	case RejectBadMagnitude:
		return "bad_magnitude"
	default:
		return "unknown"
	}
}

// Reasons lists every rejection reason, for counters and summaries.
func Reasons() []Reason {
	return []Reason{RejectUnresolved, RejectShortRow, RejectNullField, RejectBadMagnitude}
}

// Parser validates raw rows against a Schema and builds StarRecords. A nil
// Lookup is allowed and makes every secondary id NoMatch.
type Parser struct {
	xmatch Lookup
}

// NewParser returns a Parser that enriches records through xmatch.
func NewParser(xmatch Lookup) *Parser {
	return &Parser{xmatch: xmatch}
}

// Parse turns row into a record. Rejections are routine for this catalogue
// and are reported only through the Reason; Parse performs no I/O.
func (p *Parser) Parse(s Schema, row []string) (StarRecord, Reason) {
	if !s.Resolved() {
		return StarRecord{}, RejectUnresolved
	}

	var vals Values
	for _, f := range Fields() {
		i := s.idx[f]
		if i >= len(row) {
			return StarRecord{}, RejectShortRow
		}
		if row[i] == NullMarker {
			return StarRecord{}, RejectNullField
		}
		vals[f] = row[i]
	}

	secondary := NoMatch
	if p.xmatch != nil {
		if id, ok := p.xmatch.Lookup(vals[PrimaryID]); ok {
			secondary = id
		}
	}

	rec, err := NewStarRecord(vals, secondary)
	switch {
	case err == nil:
		return rec, Accepted
	case errors.Is(err, ErrNullField):
		return StarRecord{}, RejectNullField
	default:
		return StarRecord{}, RejectBadMagnitude
	}
}
