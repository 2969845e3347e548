package routing

import (
	"strings"

	"github.com/cairntrips/cairn/internal/app/domain/distance"
	"github.com/cairntrips/cairn/internal/app/models"
)

// DefaultPoint sits in central Colorado and backstops every lookup that
// cannot be resolved to a known city.
var DefaultPoint = distance.Point{Lat: 39.5501, Lng: -105.7821}

// cityPoints covers the cities the catalog actually operates in. Anything
// else resolves to DefaultPoint until a real geocoder is wired in.
var cityPoints = map[string]distance.Point{
	"denver":            {Lat: 39.7392, Lng: -104.9903},
	"colorado springs":  {Lat: 38.8339, Lng: -104.8214},
	"boulder":           {Lat: 40.0150, Lng: -105.2705},
	"aspen":             {Lat: 39.1911, Lng: -106.8175},
	"vail":              {Lat: 39.6403, Lng: -106.3742},
	"fort collins":      {Lat: 40.5853, Lng: -105.0844},
	"grand junction":    {Lat: 39.0639, Lng: -108.5506},
	"durango":           {Lat: 37.2753, Lng: -107.8801},
	"steamboat springs": {Lat: 40.4850, Lng: -106.8317},
	"breckenridge":      {Lat: 39.4817, Lng: -106.0384},
	"keystone":          {Lat: 39.5791, Lng: -105.9347},
	"telluride":         {Lat: 37.9375, Lng: -107.8123},
	"winter park":       {Lat: 39.8911, Lng: -105.7631},
	"crested butte":     {Lat: 38.8697, Lng: -106.9878},
	"estes park":        {Lat: 40.3772, Lng: -105.5217},
	"glenwood springs":  {Lat: 39.5505, Lng: -107.3248},
	"pagosa springs":    {Lat: 37.2694, Lng: -107.0098},
	"salida":            {Lat: 38.5347, Lng: -106.0001},
	"buena vista":       {Lat: 38.8422, Lng: -106.1312},
	"leadville":         {Lat: 39.2508, Lng: -106.2925},
}

// addressNeedles is scanned in order against a flattened address when the
// structured city/state fields are blank. Multi-word names come before any
// name they contain.
var addressNeedles = []struct {
	needle string
	point  distance.Point
}{
	{"denver", cityPoints["denver"]},
	{"colorado springs", cityPoints["colorado springs"]},
	{"boulder", cityPoints["boulder"]},
	{"aspen", cityPoints["aspen"]},
	{"vail", cityPoints["vail"]},
	{"breckenridge", cityPoints["breckenridge"]},
	{"keystone", cityPoints["keystone"]},
	{"telluride", cityPoints["telluride"]},
	{"winter park", cityPoints["winter park"]},
	{"crested butte", cityPoints["crested butte"]},
	{"estes park", cityPoints["estes park"]},
	{"glenwood springs", cityPoints["glenwood springs"]},
	{"pagosa springs", cityPoints["pagosa springs"]},
	{"steamboat springs", cityPoints["steamboat springs"]},
}

func knownState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "co", "colorado", "":
		return true
	default:
		return false
	}
}

// CityPoint resolves "city, state" text to coordinates. The state is
// optional; an unknown city or a non-Colorado state yields DefaultPoint.
func CityPoint(city, state string) distance.Point {
	if !knownState(state) {
		return DefaultPoint
	}
	if point, ok := cityPoints[strings.ToLower(strings.TrimSpace(city))]; ok {
		return point
	}
	return DefaultPoint
}

// ParseCityState splits a free-text "City, State" location string.
func ParseCityState(location string) (city, state string) {
	parts := strings.SplitN(location, ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		state = strings.TrimSpace(parts[1])
	}
	return city, state
}

// ActivityPoint geocodes an activity through its address: structured
// city/state first, then a substring scan of the flattened address.
func ActivityPoint(activity models.Activity) distance.Point {
	city := strings.TrimSpace(activity.Address.City)
	state := strings.TrimSpace(activity.Address.State)

	if city != "" && state != "" {
		return CityPoint(city, state)
	}

	full := strings.ToLower(activity.Address.FullAddress())
	for _, entry := range addressNeedles {
		if strings.Contains(full, entry.needle) {
			return entry.point
		}
	}
	return DefaultPoint
}
