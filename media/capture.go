// Package media reads and writes video and shows frames in a window, using
// OpenCV through gocv.
package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Errors.
var (
	ErrNotFound          = errors.New("media not found")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrOpen              = errors.New("cannot open media")
)

// Info describes a capture source. Frames is 0 for live cameras.
type Info struct {
	Width  int
	Height int
	FPS    float64
	Frames int
}

// Duration is the length of a file source.
func (i Info) Duration() time.Duration {
	if i.FPS <= 0 || i.Frames <= 0 {
		return 0
	}
	return time.Duration(float64(i.Frames) / i.FPS * float64(time.Second))
}

func (i Info) String() string {
	if i.Frames > 0 {
		return fmt.Sprintf("%dx%d @ %.2f FPS, %d frames", i.Width, i.Height, i.FPS, i.Frames)
	}
	return fmt.Sprintf("%dx%d @ %.2f FPS", i.Width, i.Height, i.FPS)
}

// Capture reads frames from a camera or a video file.
type Capture struct {
	vc   *gocv.VideoCapture
	mat  gocv.Mat
	info Info
}

// OpenCamera opens camera id and asks for a width x height stream.
func OpenCamera(id, width, height int) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil || !vc.IsOpened() {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: camera %d", ErrCameraUnavailable, id)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return newCapture(vc), nil
}

// OpenFile opens a video file.
func OpenFile(path string) (*Capture, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil || !vc.IsOpened() {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: %s", ErrOpen, path)
	}
	return newCapture(vc), nil
}

func newCapture(vc *gocv.VideoCapture) *Capture {
	return &Capture{
		vc:  vc,
		mat: gocv.NewMat(),
		info: Info{
			Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    vc.Get(gocv.VideoCaptureFPS),
			Frames: int(vc.Get(gocv.VideoCaptureFrameCount)),
		},
	}
}

// Info returns the stream properties.
func (c *Capture) Info() Info { return c.info }

// Read returns the next frame, or io.EOF when the source is exhausted.
func (c *Capture) Read() (*image.NRGBA, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, io.EOF
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return imaging.Clone(img), nil
}

// Close releases the device or file.
func (c *Capture) Close() error {
	c.mat.Close()
	return c.vc.Close()
}
