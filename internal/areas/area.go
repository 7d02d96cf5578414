package areas

import (
	"context"
	"fmt"
	"math"
)

type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// BBox is [min_lon, min_lat, max_lon, max_lat] in degrees.
type BBox [4]float64

func (b BBox) Center() Point {
	return Point{Lat: (b[1] + b[3]) / 2, Lon: (b[0] + b[2]) / 2}
}

func (b BBox) Valid() bool {
	return b[2] > b[0] && b[3] > b[1]
}

type Area struct {
	Id          string `json:"area_id"`
	Name        string `json:"name"`
	BBox        BBox   `json:"bbox"`
	Center      Point  `json:"center"`
	Description string `json:"description,omitempty"`
}

const (
	kmPerDegree    = 111.0
	areaCorrection = 0.8
)

// AreaKm2 approximates the bbox area as lat span x lon span x 111^2 x 0.8.
// This is not a geodesic projection and drifts with latitude.
func (a Area) AreaKm2() float64 {
	latSpan := math.Abs(a.BBox[3] - a.BBox[1])
	lonSpan := math.Abs(a.BBox[2] - a.BBox[0])
	return latSpan * lonSpan * kmPerDegree * kmPerDegree * areaCorrection
}

func (a Area) withDefaults() Area {
	if a.Center == (Point{}) {
		a.Center = a.BBox.Center()
	}
	if a.Name == "" {
		a.Name = a.Id
	}
	return a
}

func (a Area) validate() error {
	if a.Id == "" {
		return fmt.Errorf("area is missing an id")
	}
	if !a.BBox.Valid() {
		return fmt.Errorf("area %s has invalid bbox %v", a.Id, a.BBox)
	}
	return nil
}

// Repository is a read only source of registered areas.
type Repository interface {
	Get(ctx context.Context, id string) (Area, error)

	List(ctx context.Context) ([]Area, error)
}

func BuiltinAreas() []Area {
	builtins := []Area{
		{Id: "AREA_1", Name: "Sample area 1", BBox: BBox{0, 0, 1, 1}},
		{Id: "AREA_2", Name: "Sample area 2", BBox: BBox{1, 1, 2, 2}},
		{Id: "nyc_manhattan", Name: "Manhattan", BBox: BBox{-74.02, 40.70, -73.92, 40.85}, Description: "Manhattan and surrounding areas"},
		{Id: "nyc_jfk", Name: "JFK Airport", BBox: BBox{-73.82, 40.62, -73.76, 40.66}},
		{Id: "nyc_industrial", Name: "Brooklyn industrial", BBox: BBox{-73.95, 40.65, -73.90, 40.70}},
		{Id: "tehran_central", Name: "Central Tehran", BBox: BBox{51.35, 35.68, 51.45, 35.75}, Description: "Tehran metropolitan area"},
		{Id: "tehran_airport", Name: "Imam Khomeini Airport", BBox: BBox{51.10, 35.40, 51.20, 35.45}},
		{Id: "tehran_industrial", Name: "Tehran industrial", BBox: BBox{51.25, 35.65, 51.35, 35.70}},
	}
	for i := range builtins {
		builtins[i] = builtins[i].withDefaults()
	}
	return builtins
}
