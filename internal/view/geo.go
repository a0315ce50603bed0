package view

import "lora-control/internal/lora"

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   Point          `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Markers builds map markers for devices with coordinates. GeoJSON orders
// coordinates as longitude, latitude.
func Markers(devices []lora.Actuator) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	for _, d := range devices {
		if d.Latitude == 0 && d.Longitude == 0 {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: Point{Type: "Point", Coordinates: [2]float64{d.Longitude, d.Latitude}},
			Properties: map[string]any{
				"id":             d.ID,
				"alias":          d.Alias,
				"estado":         d.State,
				"motorEncendido": d.MotorOn,
				"estadoGateway":  d.GatewayStatus(),
			},
		})
	}
	return fc
}
