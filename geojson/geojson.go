// Package geojson writes point features as a GeoJSON FeatureCollection.
package geojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
	TypePoint             = "Point"
)

// Geometry is a GeoJSON geometry. Only points are produced here.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Point returns a point geometry. GeoJSON orders coordinates longitude first.
func Point(longitude, latitude float64) Geometry {
	return Geometry{Type: TypePoint, Coordinates: []float64{longitude, latitude}}
}

// Feature is a geometry with arbitrary JSON properties.
type Feature struct {
	Type       string      `json:"type"`
	Geometry   Geometry    `json:"geometry"`
	Properties interface{} `json:"properties"`
}

func NewFeature(geometry Geometry, properties interface{}) Feature {
	return Feature{Type: TypeFeature, Geometry: geometry, Properties: properties}
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps features; a nil slice is written as an empty array.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: TypeFeatureCollection, Features: features}
}

// Write renders features as a FeatureCollection indented by two spaces.
func Write(w io.Writer, features []Feature) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewFeatureCollection(features)); err != nil {
		return fmt.Errorf("write feature collection: %w", err)
	}
	return nil
}

// WriteFile writes features to path, replacing any existing file.
func WriteFile(path string, features []Feature) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, features); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
