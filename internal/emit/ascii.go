package emit

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// ErrNonASCII is returned when an output value contains a byte >= 0x80.
var ErrNonASCII = errors.New("emit: non-ASCII byte in output")

// asciiOnly copies bytes through unchanged and fails on the first byte that
// is not 7-bit ASCII.
type asciiOnly struct{ transform.NopResetter }

var _ transform.Transformer = asciiOnly{}

func (asciiOnly) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		c := src[nSrc]
		if c >= utf8.RuneSelf {
			return nDst, nSrc, fmt.Errorf("%w: 0x%02x", ErrNonASCII, c)
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}
