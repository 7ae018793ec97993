// Package detector defines the face detection contract shared by every
// backend, plus the backends that need no native libraries (pigo and AWS
// Rekognition) and the decoders for raw DNN outputs.
package detector

import (
	"context"
	"errors"
	"image"
	"sort"
)

// Sentinel errors.
var (
	ErrModelNotLoaded  = errors.New("model not loaded")
	ErrUnknownDetector = errors.New("unknown detector")
	ErrEmptyImage      = errors.New("empty image")
)

// Detection is one face found in a frame.
type Detection struct {
	Box        image.Rectangle
	Confidence float64
	// Eyes holds pupil positions when the backend reports them.
	Eyes []image.Point
}

// Detector finds faces in an image. Implementations are not required to be
// safe for concurrent use.
type Detector interface {
	Name() string
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

// Info describes a loaded detector for status output.
type Info struct {
	Name      string  `json:"name"`
	ModelPath string  `json:"model_path,omitempty"`
	ModelType string  `json:"model_type"`
	Framework string  `json:"framework"`
	Threshold float64 `json:"conf_threshold"`
	Loaded    bool    `json:"loaded"`
}

// Describer is implemented by detectors that can report model details.
type Describer interface {
	Info() Info
}

// Clamp clips every box to bounds and drops boxes left empty.
func Clamp(dets []Detection, bounds image.Rectangle) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		d.Box = d.Box.Canon().Intersect(bounds)
		if d.Box.Empty() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FilterByConfidence keeps detections scoring at least threshold.
func FilterByConfidence(dets []Detection, threshold float64) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Boxes returns just the rectangles.
func Boxes(dets []Detection) []image.Rectangle {
	out := make([]image.Rectangle, len(dets))
	for i, d := range dets {
		out[i] = d.Box
	}
	return out
}

// SortByConfidence orders detections best first.
func SortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}

// Scale maps boxes detected on a resized frame back to the source frame.
func Scale(dets []Detection, fx, fy float64) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.Box = image.Rect(
			int(float64(d.Box.Min.X)*fx),
			int(float64(d.Box.Min.Y)*fy),
			int(float64(d.Box.Max.X)*fx),
			int(float64(d.Box.Max.Y)*fy),
		)
		if len(d.Eyes) > 0 {
			eyes := make([]image.Point, len(d.Eyes))
			for j, p := range d.Eyes {
				eyes[j] = image.Pt(int(float64(p.X)*fx), int(float64(p.Y)*fy))
			}
			d.Eyes = eyes
		}
		out[i] = d
	}
	return out
}
