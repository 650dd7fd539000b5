// Package feature holds the company record and its GeoJSON representation
package feature

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Company is one business listed on the map page
type Company struct {
	Name     string
	Activity string
	Cluster  string
	Lat      float64
	Lng      float64
}

// Geometry is a GeoJSON point. Coordinates are always [lng, lat]
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Properties are the non-coordinate fields of a company
type Properties struct {
	Name     string `json:"Name"`
	Activity string `json:"Atividade"`
	Cluster  string `json:"Polo"`
}

// Feature is a single GeoJSON feature
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Collection is a GeoJSON feature collection
type Collection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Build converts already validated fields into a point feature
func Build(name, activity, cluster string, lat, lng float64) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{lng, lat},
		},
		Properties: Properties{
			Name:     name,
			Activity: activity,
			Cluster:  cluster,
		},
	}
}

// Feature returns the company as a feature
func (c Company) Feature() Feature {
	return Build(c.Name, c.Activity, c.Cluster, c.Lat, c.Lng)
}

// Company recovers the record from a feature. ok is false when the geometry is not a point
func (f Feature) Company() (c Company, ok bool) {
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 {
		return Company{}, false
	}
	return Company{
		Name:     f.Properties.Name,
		Activity: f.Properties.Activity,
		Cluster:  f.Properties.Cluster,
		Lng:      f.Geometry.Coordinates[0],
		Lat:      f.Geometry.Coordinates[1],
	}, true
}

// NewCollection wraps features in a FeatureCollection
func NewCollection(features []Feature) Collection {
	if features == nil {
		features = []Feature{}
	}
	return Collection{Type: "FeatureCollection", Features: features}
}

// decimalDegree matches plain decimal notation: no exponent, hex, underscores or Inf/NaN
var decimalDegree = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ParseCoordinate parses a decimal degree accepting either comma or point as separator
func ParseCoordinate(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	raw = strings.Replace(raw, ",", ".", 1)
	if !decimalDegree.MatchString(raw) {
		return 0, fmt.Errorf("invalid coordinate %q: not a decimal number", s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	return v, nil
}
