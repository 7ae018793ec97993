package media

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// ReadImage decodes any format OpenCV supports.
func ReadImage(path string) (*image.NRGBA, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	m := gocv.IMRead(path, gocv.IMReadColor)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrOpen, path)
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return imaging.Clone(img), nil
}

// WriteImage encodes img in the format of the path extension.
func WriteImage(path string, img image.Image) error {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("image to mat: %w", err)
	}
	defer m.Close()
	if !gocv.IMWrite(path, m) {
		return fmt.Errorf("%w: cannot write %s", ErrOpen, path)
	}
	return nil
}
