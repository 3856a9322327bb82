package mtile

import (
	"io/ioutil"
	"log"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// A GeometryResolver maps tile codes onto ground footprints, so the
// pipeline can bound its processing area. It is a thin naming helper:
// footprints come from a gazetteer, not from any reprojection math.
type GeometryResolver struct {
	footprints map[string]orb.Bound
}

// The grid cells we routinely export. Extend at runtime with
// LoadGazetteer rather than editing this table.
var builtinFootprints = map[string]orb.Bound{
	"55KDV": {Min: orb.Point{146.9, -18.1}, Max: orb.Point{147.9, -17.1}},
	"55KEV": {Min: orb.Point{147.9, -18.1}, Max: orb.Point{148.9, -17.1}},
	"55KFA": {Min: orb.Point{148.8, -14.5}, Max: orb.Point{149.8, -13.5}},
	"56KLB": {Min: orb.Point{150.0, -21.4}, Max: orb.Point{151.0, -20.4}},
	"56KKC": {Min: orb.Point{149.1, -20.5}, Max: orb.Point{150.1, -19.5}},
	"55LCD": {Min: orb.Point{146.0, -15.3}, Max: orb.Point{147.0, -14.3}},
}

func NewGeometryResolver() *GeometryResolver {
	r := &GeometryResolver{footprints: map[string]orb.Bound{}}
	for code, b := range builtinFootprints {
		r.footprints[code] = b
	}
	return r
}

// LoadGazetteer merges extra code -> [minLon,minLat,maxLon,maxLat]
// entries from a YAML file.
func (r *GeometryResolver)LoadGazetteer(filename string) error {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "gazetteer read %s", filename)
	}
	entries := map[string][4]float64{}
	if err := yaml.Unmarshal(contents, &entries); err != nil {
		return errors.Wrapf(err, "gazetteer parse %s", filename)
	}
	for code, v := range entries {
		r.footprints[code] = orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	}
	log.Printf("Gazetteer %s: %d footprints loaded\n", filename, len(entries))
	return nil
}

// Footprint resolves a single tile code.
func (r *GeometryResolver)Footprint(code string) (orb.Bound, error) {
	b, ok := r.footprints[code]
	if !ok {
		return orb.Bound{}, errors.Wrapf(ErrEmptyFootprint, "code %s", code)
	}
	return b, nil
}

// Resolve unions the footprints of every code. An empty/unknown
// lookup is a distinct failure from "zero images available": the
// caller asked us to bound an area we know nothing about.
func (r *GeometryResolver)Resolve(codes []string) (orb.Bound, error) {
	var union orb.Bound
	found := 0
	for _, code := range codes {
		b, ok := r.footprints[code]
		if !ok {
			continue
		}
		if found == 0 {
			union = b
		} else {
			union = union.Union(b)
		}
		found++
	}
	if found == 0 {
		return orb.Bound{}, errors.Wrapf(ErrEmptyFootprint, "codes %v", codes)
	}
	return union, nil
}
