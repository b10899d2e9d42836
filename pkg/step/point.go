package step

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// TypeCartesianPoint is the only entity type the reader interprets.
const TypeCartesianPoint = "CARTESIAN_POINT"

var (
	// rawPointPattern matches CARTESIAN_POINT('name',(x,y,z)) on the raw line.
	rawPointPattern = regexp.MustCompile(`CARTESIAN_POINT\s*\(\s*'[^']*'\s*,\s*\(([^)]*)\)\s*\)`)
	// listPattern matches the innermost parenthesised list in a parameter.
	listPattern = regexp.MustCompile(`\(([^()]+)\)`)
	// numberPrefix matches the leading decimal number of a token.
	numberPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
)

// Point returns the coordinates of a CARTESIAN_POINT entity.
//
// The raw line is matched first; when it does not have the canonical
// ('name',(x,y,z)) shape, only the first parameter is tried, and it must be
// a parenthesised list. A point needs at least three numeric coordinates;
// extra coordinates are ignored. Any other entity type yields false.
func (e Entity) Point() (v3.Vec, bool) {
	if e.Type != TypeCartesianPoint {
		return v3.Vec{}, false
	}
	if m := rawPointPattern.FindStringSubmatch(e.Raw); m != nil {
		if p, ok := coordinates(m[1]); ok {
			return p, true
		}
	}
	if len(e.Parameters) == 0 {
		return v3.Vec{}, false
	}
	m := listPattern.FindStringSubmatch(e.Parameters[0])
	if m == nil {
		return v3.Vec{}, false
	}
	return coordinates(m[1])
}

// Points returns the coordinates of every CARTESIAN_POINT entity that yields
// one, in ascending id order. Malformed points are skipped.
func (es Entities) Points() []v3.Vec {
	var points []v3.Vec
	for _, e := range es.OfType(TypeCartesianPoint) {
		if p, ok := e.Point(); ok {
			points = append(points, p)
		}
	}
	return points
}

// coordinates parses a comma separated numeric list.
func coordinates(list string) (v3.Vec, bool) {
	var values []float64
	for _, tok := range strings.Split(list, ",") {
		if f, ok := parseNumber(tok); ok {
			values = append(values, f)
		}
	}
	if len(values) < 3 {
		return v3.Vec{}, false
	}
	return v3.Vec{X: values[0], Y: values[1], Z: values[2]}, true
}

// parseNumber parses a STEP real such as "10.", "-1.5E-03" or ".5". Trailing
// garbage after a valid leading number is tolerated.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	prefix := numberPrefix.FindString(s)
	if prefix == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
