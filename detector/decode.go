package detector

import (
	"fmt"
	"image"
)

// DecodeYOLO parses the output tensor of a YOLOv8/v11 face model.
//
// The tensor has shape (1, C, N) stored row-major: for every anchor i the
// values out[0*N+i] .. out[3*N+i] are cx, cy, w, h in network input pixels and
// out[4*N+i] is the face score. Extra rows (landmarks) are ignored. Boxes are
// multiplied by scale to map them back onto the source frame.
func DecodeYOLO(out []float32, channels, anchors int, scale, threshold float64) ([]Detection, error) {
	if channels < 5 {
		return nil, fmt.Errorf("yolo output has %d channels, want at least 5", channels)
	}
	if len(out) < channels*anchors {
		return nil, fmt.Errorf("yolo output has %d values, want %d", len(out), channels*anchors)
	}

	var dets []Detection
	for i := 0; i < anchors; i++ {
		score := float64(out[4*anchors+i])
		if score < threshold {
			continue
		}
		cx := float64(out[i])
		cy := float64(out[anchors+i])
		w := float64(out[2*anchors+i])
		h := float64(out[3*anchors+i])
		dets = append(dets, Detection{
			Box: image.Rect(
				int((cx-w/2)*scale),
				int((cy-h/2)*scale),
				int((cx+w/2)*scale),
				int((cy+h/2)*scale),
			),
			Confidence: score,
		})
	}
	return dets, nil
}

// DecodeSSD parses the (1, 1, N, 7) output of the res10 SSD face detector.
// Each record is [image id, label, score, x1, y1, x2, y2] with coordinates
// normalised to the frame size.
func DecodeSSD(out []float32, width, height int, threshold float64) []Detection {
	var dets []Detection
	for i := 0; i+7 <= len(out); i += 7 {
		score := float64(out[i+2])
		if score < threshold {
			continue
		}
		dets = append(dets, Detection{
			Box: image.Rect(
				int(out[i+3]*float32(width)),
				int(out[i+4]*float32(height)),
				int(out[i+5]*float32(width)),
				int(out[i+6]*float32(height)),
			),
			Confidence: score,
		})
	}
	return dets
}

// YuNetColumns is the row width of the YuNet face detector output.
const YuNetColumns = 15

// DecodeYuNet parses YuNet rows: x, y, w, h, five landmark pairs (right eye,
// left eye, nose tip, right and left mouth corner) and the score.
func DecodeYuNet(rows [][]float32, threshold float64) []Detection {
	var dets []Detection
	for _, r := range rows {
		if len(r) < YuNetColumns {
			continue
		}
		score := float64(r[14])
		if score < threshold {
			continue
		}
		x, y, w, h := int(r[0]), int(r[1]), int(r[2]), int(r[3])
		dets = append(dets, Detection{
			Box:        image.Rect(x, y, x+w, y+h),
			Confidence: score,
			Eyes: []image.Point{
				image.Pt(int(r[4]), int(r[5])),
				image.Pt(int(r[6]), int(r[7])),
			},
		})
	}
	return dets
}

// FromRects builds detections from plain rectangles with a fixed
// confidence, as returned by cascade classifiers.
func FromRects(rects []image.Rectangle, confidence float64) []Detection {
	dets := make([]Detection, len(rects))
	for i, r := range rects {
		dets[i] = Detection{Box: r, Confidence: confidence}
	}
	return dets
}

// SquareScale is the factor mapping network input coordinates back onto a
// w x h frame that was padded to a square at the bottom right and resized
// to input x input.
func SquareScale(w, h, input int) float64 {
	if input <= 0 {
		return 1
	}
	return float64(max(w, h)) / float64(input)
}
