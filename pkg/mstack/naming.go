package mstack

import(
	"fmt"
	"sort"
	"strings"

	"github.com/openreef/s2mosaic/pkg/mtile"
)

// OutputName builds the export file base name:
//
//	<basename>_<style>_<dash-joined-unique-tile-codes>_<earliest>-<latest>-n<count>
//
// or <basename>_<style>_<codes>_<YYYYMM>-n1 for a single image. Tile
// codes are de-duplicated preserving first occurrence; the date range
// comes from a lexicographic sort of the YYYYMM tokens, which is
// chronological because they are zero-padded.
func OutputName(basename, style string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", ErrNoImages
	}

	codes := []string{}
	seen := map[string]bool{}
	months := []string{}

	for _, id := range ids {
		code, err := mtile.TileCode(id)
		if err != nil {
			return "", err
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}

		ym, err := mtile.YearMonth(id)
		if err != nil {
			return "", err
		}
		months = append(months, ym)
	}

	sort.Strings(months)

	var dates string
	if len(ids) == 1 {
		dates = fmt.Sprintf("%s-n1", months[0])
	} else {
		dates = fmt.Sprintf("%s-%s-n%d", months[0], months[len(months)-1], len(ids))
	}

	return fmt.Sprintf("%s_%s_%s_%s", basename, style, strings.Join(codes, "-"), dates), nil
}
