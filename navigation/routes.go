package navigation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	// KmPerPixel is the map scale used for real distance estimates.
	KmPerPixel = 0.5
	// CruiseSpeedKmh is the average ground speed used for flight time estimates.
	CruiseSpeedKmh = 50.0
)

// ErrUnknownCity is returned when a route names a city missing from the planner's table.
var ErrUnknownCity = errors.New("unknown city")

// DefaultCities are the city positions on the bundled map, in map pixels.
var DefaultCities = map[string]r2.Point{
	"Mumbai":      {X: 150, Y: 200},
	"Pune":        {X: 250, Y: 250},
	"Nagpur":      {X: 400, Y: 300},
	"Kolkata":     {X: 600, Y: 400},
	"Delhi":       {X: 300, Y: 100},
	"Bangalore":   {X: 200, Y: 400},
	"Chennai":     {X: 300, Y: 450},
	"Hyderabad":   {X: 350, Y: 350},
	"Ahmedabad":   {X: 200, Y: 150},
	"Jaipur":      {X: 250, Y: 120},
	"Lucknow":     {X: 350, Y: 180},
	"Patna":       {X: 450, Y: 250},
	"Guwahati":    {X: 550, Y: 200},
	"Surat":       {X: 180, Y: 180},
	"Indore":      {X: 280, Y: 220},
	"Bhopal":      {X: 320, Y: 240},
	"Raipur":      {X: 380, Y: 280},
	"Bhubaneswar": {X: 500, Y: 320},
	"Ranchi":      {X: 480, Y: 280},
	"Varanasi":    {X: 420, Y: 220},
	"Kanpur":      {X: 380, Y: 200},
	"Agra":        {X: 320, Y: 160},
	"Jodhpur":     {X: 220, Y: 140},
	"Udaipur":     {X: 240, Y: 160},
	"Bikaner":     {X: 200, Y: 120},
	"Amritsar":    {X: 280, Y: 80},
	"Chandigarh":  {X: 300, Y: 90},
	"Dehradun":    {X: 320, Y: 110},
	"Shimla":      {X: 310, Y: 100},
	"Srinagar":    {X: 290, Y: 70},
	"Leh":         {X: 270, Y: 60},
}

// NamedRoute is a route listed by name.
type NamedRoute struct {
	Name   string   `json:"name"`
	Cities []string `json:"cities"`
}

// DefaultPopularRoutes are the routes offered by the bundled map.
var DefaultPopularRoutes = []NamedRoute{
	{"Mumbai to Pune", []string{"Mumbai", "Pune"}},
	{"Mumbai to Delhi", []string{"Mumbai", "Delhi"}},
	{"Mumbai to Kolkata", []string{"Mumbai", "Pune", "Nagpur", "Kolkata"}},
	{"Delhi to Mumbai", []string{"Delhi", "Mumbai"}},
	{"Delhi to Kolkata", []string{"Delhi", "Lucknow", "Patna", "Kolkata"}},
	{"Bangalore to Delhi", []string{"Bangalore", "Hyderabad", "Nagpur", "Delhi"}},
	{"Chennai to Mumbai", []string{"Chennai", "Bangalore", "Mumbai"}},
	{"Kolkata to Mumbai", []string{"Kolkata", "Nagpur", "Pune", "Mumbai"}},
	{"Mumbai to Bangalore", []string{"Mumbai", "Pune", "Bangalore"}},
	{"Delhi to Bangalore", []string{"Delhi", "Agra", "Bhopal", "Nagpur", "Hyderabad", "Bangalore"}},
}

// CityDistance pairs a city with its distance in pixels from some reference.
type CityDistance struct {
	City     string
	Distance float64
}

// RouteInfo summarizes a validated route.
type RouteInfo struct {
	Cities         []string      `json:"cities"`
	DistancePixels float64       `json:"distance_pixels"`
	DistanceKm     float64       `json:"distance_km"`
	FlightTime     time.Duration `json:"flight_time"`
	// Legs holds the pixel distance of each consecutive pair.
	Legs []float64 `json:"legs"`
}

// WaypointCount is the number of cities on the route.
func (ri RouteInfo) WaypointCount() int {
	return len(ri.Cities)
}

// RoutePlanner answers distance and route questions over a table of city positions.
type RoutePlanner struct {
	cities  map[string]r2.Point
	popular []NamedRoute
}

// NewRoutePlanner returns a planner over the given cities and popular routes.
func NewRoutePlanner(cities map[string]r2.Point, popular []NamedRoute) *RoutePlanner {
	return &RoutePlanner{cities: cities, popular: popular}
}

// DefaultRoutePlanner returns a planner over the bundled map.
func DefaultRoutePlanner() *RoutePlanner {
	return NewRoutePlanner(DefaultCities, DefaultPopularRoutes)
}

// Cities returns all city names in alphabetical order.
func (rp *RoutePlanner) Cities() []string {
	names := lo.Keys(rp.cities)
	slices.Sort(names)
	return names
}

// Position returns the map position of city.
func (rp *RoutePlanner) Position(city string) (r2.Point, error) {
	pos, ok := rp.cities[city]
	if !ok {
		return r2.Point{}, errors.Wrapf(ErrUnknownCity, "%q", city)
	}
	return pos, nil
}

// PopularRoutes returns the named routes in listing order.
func (rp *RoutePlanner) PopularRoutes() []NamedRoute {
	return slices.Clone(rp.popular)
}

// PopularRoute looks up a named route, ignoring case.
func (rp *RoutePlanner) PopularRoute(name string) (NamedRoute, bool) {
	return lo.Find(rp.popular, func(r NamedRoute) bool {
		return strings.EqualFold(r.Name, name)
	})
}

// Distance returns the pixel distance between two cities.
func (rp *RoutePlanner) Distance(from, to string) (float64, error) {
	a, err := rp.Position(from)
	if err != nil {
		return 0, err
	}
	b, err := rp.Position(to)
	if err != nil {
		return 0, err
	}
	return a.Sub(b).Norm(), nil
}

// RouteDistance returns the summed pixel distance of all legs.
func (rp *RoutePlanner) RouteDistance(route []string) (float64, error) {
	if err := rp.ValidateRoute(route); err != nil {
		return 0, err
	}
	legs, err := rp.legs(route)
	if err != nil {
		return 0, err
	}
	return lo.Sum(legs), nil
}

func (rp *RoutePlanner) legs(route []string) ([]float64, error) {
	legs := make([]float64, 0, len(route)-1)
	for i := 0; i+1 < len(route); i++ {
		d, err := rp.Distance(route[i], route[i+1])
		if err != nil {
			return nil, err
		}
		legs = append(legs, d)
	}
	return legs, nil
}

// NearestCities returns up to count other cities ordered by increasing distance from city.
func (rp *RoutePlanner) NearestCities(city string, count int) ([]CityDistance, error) {
	pos, err := rp.Position(city)
	if err != nil {
		return nil, err
	}
	return rp.nearestTo(pos, count, city), nil
}

func (rp *RoutePlanner) nearestTo(pos r2.Point, count int, exclude ...string) []CityDistance {
	candidates := lo.Without(rp.Cities(), exclude...)
	out := lo.Map(candidates, func(name string, _ int) CityDistance {
		return CityDistance{City: name, Distance: rp.cities[name].Sub(pos).Norm()}
	})
	// stable so equal distances keep alphabetical order
	slices.SortStableFunc(out, func(a, b CityDistance) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// SuggestRoute proposes a route from start to end with at most maxWaypoints cities, filling the
// middle with the cities closest to the midpoint of start and end.
func (rp *RoutePlanner) SuggestRoute(start, end string, maxWaypoints int) ([]string, error) {
	a, err := rp.Position(start)
	if err != nil {
		return nil, err
	}
	b, err := rp.Position(end)
	if err != nil {
		return nil, err
	}
	if maxWaypoints <= 2 {
		return []string{start, end}, nil
	}
	mid := a.Add(b).Mul(0.5)
	between := rp.nearestTo(mid, maxWaypoints-2, start, end)
	route := []string{start}
	route = append(route, lo.Map(between, func(cd CityDistance, _ int) string { return cd.City })...)
	return append(route, end), nil
}

// ValidateRoute checks that route has at least two cities, all of them known.
func (rp *RoutePlanner) ValidateRoute(route []string) error {
	if len(route) < 2 {
		return errors.New("route must have at least 2 cities")
	}
	unknown := lo.Filter(route, func(city string, _ int) bool {
		_, ok := rp.cities[city]
		return !ok
	})
	if len(unknown) > 0 {
		return errors.Wrapf(ErrUnknownCity, "%s", strings.Join(lo.Uniq(unknown), ", "))
	}
	return nil
}

// RouteInfo validates route and computes its distances and estimated flight time.
func (rp *RoutePlanner) RouteInfo(route []string) (RouteInfo, error) {
	if err := rp.ValidateRoute(route); err != nil {
		return RouteInfo{}, err
	}
	legs, err := rp.legs(route)
	if err != nil {
		return RouteInfo{}, err
	}
	px := lo.Sum(legs)
	km := px * KmPerPixel
	return RouteInfo{
		Cities:         slices.Clone(route),
		DistancePixels: px,
		DistanceKm:     km,
		FlightTime:     time.Duration(km / CruiseSpeedKmh * float64(time.Hour)),
		Legs:           legs,
	}, nil
}

// Waypoints converts a route into named waypoints for the navigation controller.
func (rp *RoutePlanner) Waypoints(route []string) ([]Waypoint, error) {
	if err := rp.ValidateRoute(route); err != nil {
		return nil, err
	}
	return lo.Map(route, func(city string, _ int) Waypoint {
		return Waypoint{Name: city, Position: rp.cities[city]}
	}), nil
}

// FormatFlightTime renders a duration as hours and whole minutes, e.g. "3h 12m".
func FormatFlightTime(d time.Duration) string {
	h := int(d.Hours())
	m := int((d - time.Duration(h)*time.Hour).Minutes())
	return fmt.Sprintf("%dh %dm", h, m)
}
