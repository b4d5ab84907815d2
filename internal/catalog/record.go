// Package catalog holds the typed star record, the per-chunk column schema
// and the row parser that turns raw catalogue rows into records.
//
// A StarRecord can only be obtained through NewStarRecord or Parser.Parse,
// both of which refuse rows with a null required field, so holding a
// StarRecord means every required source field was present.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// NullMarker is the literal token the Gaia CSV export writes for a missing value.
const NullMarker = "null"

// NoMatch is the secondary identifier used when the cross-match table has no
// entry for a source (or no table was loaded). It is a string on purpose so
// the output column stays syntactically an identifier.
const NoMatch = "-1"

var (
	// ErrNullField is returned when a required value equals NullMarker.
	ErrNullField = errors.New("catalog: required field is null")
	// ErrBadMagnitude is returned when the magnitude is not a decimal number.
	ErrBadMagnitude = errors.New("catalog: magnitude is not a decimal number")
)

// Field identifies one of the required logical source fields.
type Field int

const (
	PrimaryID Field = iota
	RA
	Dec
	Parallax
	Magnitude
	ColorIndex

	// NumFields is the number of required source fields.
	NumFields = int(ColorIndex) + 1
)

var fieldNames = [NumFields]string{"primary_id", "ra", "dec", "parallax", "magnitude", "color_index"}

// String returns the logical name of the field.
func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Fields lists every required field in canonical order.
func Fields() []Field {
	return []Field{PrimaryID, RA, Dec, Parallax, Magnitude, ColorIndex}
}

// Values holds one raw string per required field, indexed by Field.
type Values [NumFields]string

// StarRecord is one validated catalogue entry. It is immutable.
type StarRecord struct {
	vals      Values
	secondary string
	magKey    decimal.Decimal
}

// NewStarRecord validates vals and builds a record. An empty secondary id is
// replaced by NoMatch. The magnitude is parsed as an exact decimal; binary
// floating point is never involved.
func NewStarRecord(vals Values, secondary string) (StarRecord, error) {
	for _, f := range Fields() {
		if vals[f] == NullMarker {
			return StarRecord{}, fmt.Errorf("%w: %s", ErrNullField, f)
		}
	}
	key, err := decimal.NewFromString(vals[Magnitude])
	if err != nil {
		return StarRecord{}, fmt.Errorf("%w: %q", ErrBadMagnitude, vals[Magnitude])
	}
	if secondary == "" {
		secondary = NoMatch
	}
	return StarRecord{vals: vals, secondary: secondary, magKey: key}, nil
}

func (r StarRecord) SourceID() string    { return r.vals[PrimaryID] }
func (r StarRecord) SecondaryID() string { return r.secondary }
func (r StarRecord) RA() string          { return r.vals[RA] }
func (r StarRecord) Dec() string         { return r.vals[Dec] }
func (r StarRecord) Parallax() string    { return r.vals[Parallax] }
func (r StarRecord) Magnitude() string   { return r.vals[Magnitude] }
func (r StarRecord) ColorIndex() string  { return r.vals[ColorIndex] }

// MagnitudeKey is the exact decimal value of Magnitude used for ranking.
func (r StarRecord) MagnitudeKey() decimal.Decimal { return r.magKey }

// Values returns a copy of the raw required values.
func (r StarRecord) Values() Values { return r.vals }

// Compare orders records by brightness: negative when r is brighter
// (numerically smaller magnitude) than o, zero when equal.
func (r StarRecord) Compare(o StarRecord) int {
	return r.magKey.Cmp(o.magKey)
}

// Columns returns the seven output values in extract order: primary id,
// secondary id, ra, dec, parallax, magnitude, colour index.
func (r StarRecord) Columns() []string {
	return []string{
		r.vals[PrimaryID],
		r.secondary,
		r.vals[RA],
		r.vals[Dec],
		r.vals[Parallax],
		r.vals[Magnitude],
		r.vals[ColorIndex],
	}
}
