package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Writer encodes frames to a video file.
type Writer struct {
	vw   *gocv.VideoWriter
	size image.Point
}

// NewWriter creates path with the four character codec, frame rate and
// frame size. Frames of another size are resized.
func NewWriter(path, codec string, fps float64, width, height int) (*Writer, error) {
	if len(codec) != 4 {
		return nil, fmt.Errorf("%w: codec %q is not a fourcc", ErrOpen, codec)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	if fps <= 0 {
		fps = 30
	}
	vw, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpen, path)
	}
	return &Writer{vw: vw, size: image.Pt(width, height)}, nil
}

// Write appends one frame.
func (w *Writer) Write(img image.Image) error {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("image to mat: %w", err)
	}
	defer m.Close()

	if m.Cols() != w.size.X || m.Rows() != w.size.Y {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(m, &resized, w.size, 0, 0, gocv.InterpolationLinear)
		return w.vw.Write(resized)
	}
	return w.vw.Write(m)
}

// Close finishes the file.
func (w *Writer) Close() error {
	return w.vw.Close()
}
