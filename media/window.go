package media

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Window is an on-screen frame viewer.
type Window struct {
	w *gocv.Window
}

// NewWindow opens a window titled title.
func NewWindow(title string) *Window {
	return &Window{w: gocv.NewWindow(title)}
}

// Show displays img.
func (w *Window) Show(img image.Image) error {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("image to mat: %w", err)
	}
	defer m.Close()
	w.w.IMShow(m)
	return nil
}

// WaitKey waits up to ms milliseconds for a key press and returns its code,
// or -1.
func (w *Window) WaitKey(ms int) int {
	return w.w.WaitKey(ms)
}

// Resize sets the window size.
func (w *Window) Resize(width, height int) {
	w.w.ResizeWindow(width, height)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.w.Close()
}
