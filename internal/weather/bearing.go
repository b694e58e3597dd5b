package weather

import "math"

var cardinals = [...]string{
	"N", "NNE", "NE", "ENE",
	"E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW",
}

const (
	fullCircle    = 360.0
	cardinalWidth = fullCircle / float64(len(cardinals))
)

// ToCardinal converts a compass bearing in degrees to one of 16 cardinal
// labels. Any finite input is accepted; ties round to the next sector clockwise.
func ToCardinal(deg float64) string {
	d := math.Mod(deg, fullCircle)
	if d < 0 {
		d += fullCircle
	}
	i := int(math.Floor(d/cardinalWidth + 0.5))
	return cardinals[i%len(cardinals)]
}

// normalizeBearing folds a bearing into 0..359.
func normalizeBearing(deg int) int {
	d := deg % 360
	if d < 0 {
		d += 360
	}
	return d
}
