// Package geo resolves free-text location mentions against a small US
// city gazetteer and computes great-circle distances so match results
// can be annotated with how far each trial site is from the patient.
// Distance is advisory only and never changes ranking confidence.
package geo

import (
	"math"
	"strings"

	"github.com/twpayne/go-geom"
)

const earthRadiusKm = 6371.0

// Place is a resolved location with WGS84 coordinates.
type Place struct {
	City  string
	State string
	Point *geom.Point
}

// gazetteer covers the metro areas that dominate US trial sites. Keys are
// lowercase "city, st".
var gazetteer = map[string]Place{
	"new york, ny":      place("New York", "NY", -74.0060, 40.7128),
	"los angeles, ca":   place("Los Angeles", "CA", -118.2437, 34.0522),
	"chicago, il":       place("Chicago", "IL", -87.6298, 41.8781),
	"houston, tx":       place("Houston", "TX", -95.3698, 29.7604),
	"phoenix, az":       place("Phoenix", "AZ", -112.0740, 33.4484),
	"philadelphia, pa":  place("Philadelphia", "PA", -75.1652, 39.9526),
	"san antonio, tx":   place("San Antonio", "TX", -98.4936, 29.4241),
	"san diego, ca":     place("San Diego", "CA", -117.1611, 32.7157),
	"dallas, tx":        place("Dallas", "TX", -96.7970, 32.7767),
	"san francisco, ca": place("San Francisco", "CA", -122.4194, 37.7749),
	"seattle, wa":       place("Seattle", "WA", -122.3321, 47.6062),
	"boston, ma":        place("Boston", "MA", -71.0589, 42.3601),
	"denver, co":        place("Denver", "CO", -104.9903, 39.7392),
	"atlanta, ga":       place("Atlanta", "GA", -84.3880, 33.7490),
	"miami, fl":         place("Miami", "FL", -80.1918, 25.7617),
	"minneapolis, mn":   place("Minneapolis", "MN", -93.2650, 44.9778),
	"cleveland, oh":     place("Cleveland", "OH", -81.6944, 41.4993),
	"baltimore, md":     place("Baltimore", "MD", -76.6122, 39.2904),
	"nashville, tn":     place("Nashville", "TN", -86.7816, 36.1627),
	"rochester, mn":     place("Rochester", "MN", -92.4699, 44.0121),
	"durham, nc":        place("Durham", "NC", -78.8986, 35.9940),
	"saint louis, mo":   place("Saint Louis", "MO", -90.1994, 38.6270),
	"pittsburgh, pa":    place("Pittsburgh", "PA", -79.9959, 40.4406),
	"portland, or":      place("Portland", "OR", -122.6765, 45.5231),
	"washington, dc":    place("Washington", "DC", -77.0369, 38.9072),
}

// cityOnly indexes gazetteer entries by bare city name for mentions that
// omit the state. Ambiguous bare names (portland vs portland) keep the
// first entry inserted; callers wanting precision should pass city+state.
var cityOnly = func() map[string]Place {
	m := make(map[string]Place, len(gazetteer))
	for key, p := range gazetteer {
		city := strings.SplitN(key, ",", 2)[0]
		if _, ok := m[city]; !ok {
			m[city] = p
		}
	}
	return m
}()

func place(city, state string, lon, lat float64) Place {
	return Place{
		City:  city,
		State: state,
		Point: geom.NewPointFlat(geom.XY, []float64{lon, lat}),
	}
}

// Resolve looks up a free-text location mention. Accepts "City, ST",
// "City ST", or a bare city name.
func Resolve(mention string) (Place, bool) {
	s := strings.ToLower(strings.TrimSpace(mention))
	if s == "" {
		return Place{}, false
	}
	if p, ok := gazetteer[s]; ok {
		return p, true
	}
	// "Boston MA" without the comma.
	if fields := strings.Fields(s); len(fields) >= 2 {
		last := fields[len(fields)-1]
		if len(last) == 2 {
			key := strings.Join(fields[:len(fields)-1], " ") + ", " + last
			if p, ok := gazetteer[key]; ok {
				return p, true
			}
		}
	}
	if p, ok := cityOnly[s]; ok {
		return p, true
	}
	return Place{}, false
}

// DistanceKm computes the haversine great-circle distance between two
// points in kilometers.
func DistanceKm(a, b *geom.Point) float64 {
	lon1, lat1 := radians(a.X()), radians(a.Y())
	lon2, lat2 := radians(b.X()), radians(b.Y())

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// NearestSiteKm returns the distance from the patient's place to the
// closest resolvable trial site. Returns false when the patient location
// or every site is unresolvable.
func NearestSiteKm(patient Place, siteMentions []string) (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, mention := range siteMentions {
		site, ok := Resolve(mention)
		if !ok {
			continue
		}
		if d := DistanceKm(patient.Point, site.Point); d < best {
			best = d
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return math.Round(best*10) / 10, true
}
