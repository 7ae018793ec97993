package compose

import (
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	parseFonts = sync.OnceValues(func() (*truetype.Font, error) {
		return truetype.Parse(goregular.TTF)
	})
	parseBold = sync.OnceValues(func() (*truetype.Font, error) {
		return truetype.Parse(gobold.TTF)
	})
)

// Font returns Go Regular at size points. Faces are not safe for concurrent
// use, so every caller gets its own.
func Font(size float64) font.Face {
	return face(parseFonts, size)
}

// BoldFont returns Go Bold at size points.
func BoldFont(size float64) font.Face {
	return face(parseBold, size)
}

func face(parse func() (*truetype.Font, error), size float64) font.Face {
	f, err := parse()
	if err != nil {
		// the embedded fonts are known good
		panic(err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull})
}
