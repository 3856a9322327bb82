package mtile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Acquisition identifiers look like
//
//	SENSOR/20170812T003031_20170812T003034_T55KDV
//
// i.e. <sensor>/<start-timestamp>_<end-timestamp>_T<tile-code>. The
// extraction rules below are a string contract the rest of the
// pipeline (naming, probability-layer joins) depends on; change them
// and every output filename changes.

// TileCode extracts the grid cell code: the substring after the last
// "_T". For the example above it is "55KDV".
func TileCode(id string) (string, error) {
	i := strings.LastIndex(id, "_T")
	if i < 0 || i+2 >= len(id) {
		return "", errors.Errorf("no _T tile code in identifier %q", id)
	}
	return id[i+2:], nil
}

// YearMonth extracts the 6-digit YYYYMM token of the start timestamp:
// the 6 characters immediately after the last "/". For the example
// above it is "201708". Zero-padded and chronological, so the tokens
// sort lexicographically by date.
func YearMonth(id string) (string, error) {
	i := strings.LastIndex(id, "/")
	if i < 0 || i+1+6 > len(id) {
		return "", errors.Errorf("no timestamp token in identifier %q", id)
	}
	return id[i+1 : i+1+6], nil
}

// AcquisitionTime parses the start timestamp out of the identifier.
// Callers fall back to EXIF metadata when the identifier carries none.
func AcquisitionTime(id string) (time.Time, error) {
	i := strings.LastIndex(id, "/")
	if i < 0 {
		return time.Time{}, errors.Errorf("no timestamp in identifier %q", id)
	}
	rest := id[i+1:]
	if j := strings.Index(rest, "_"); j > 0 {
		rest = rest[:j]
	}
	t, err := time.Parse("20060102T150405", rest)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "identifier %q", id)
	}
	return t, nil
}
