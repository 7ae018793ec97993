package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"thaitanloi365/go-face-privacy/age"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
	"thaitanloi365/go-face-privacy/privacy"
)

const (
	formImage       = "image"
	headerFaceCount = "X-Faces-Detected"
	ageCropMargin   = 0.2
)

var errBadRequest = errors.New("bad request")

// Box is a face rectangle in pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func toBox(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Face is one detection in a JSON response.
type Face struct {
	Box        Box             `json:"box"`
	Confidence float64         `json:"confidence"`
	Eyes       []image.Point   `json:"eyes,omitempty"`
	Age        *age.Prediction `json:"age,omitempty"`
}

// DetectResponse is the body of POST /v1/detect and /v1/age.
type DetectResponse struct {
	Detector string `json:"detector"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Faces    []Face `json:"faces"`
}

// Health reports liveness and the loaded detector.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "detector": s.detector.Name()}
	if d, ok := s.detector.(detector.Describer); ok {
		body["model"] = d.Info()
	}
	c.JSON(http.StatusOK, body)
}

// ListEffects describes the available effects and intensity range.
func (s *Server) ListEffects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"effects":       effects.Available(),
		"default":       s.effect,
		"min_level":     effects.MinLevel,
		"max_level":     effects.MaxLevel,
		"default_level": s.level,
	})
}

// Anonymize hides every face in the uploaded image and returns the result,
// PNG when ?format=png and JPEG otherwise.
func (s *Server) Anonymize(c *gin.Context) {
	effect, level, err := s.effectParams(c)
	if err != nil {
		mapError(c, err)
		return
	}
	format := imaging.JPEG
	if c.Query("format") == "png" {
		format = imaging.PNG
	}

	img, err := s.upload(c)
	if err != nil {
		mapError(c, err)
		return
	}
	dets, err := s.detect(c, img)
	if err != nil {
		mapError(c, err)
		return
	}
	privacy.Hide(img, dets, effect, level)

	var buf bytes.Buffer
	if err := privacy.EncodeFormat(&buf, img, format); err != nil {
		mapError(c, err)
		return
	}
	c.Header(headerFaceCount, strconv.Itoa(len(dets)))
	c.Data(http.StatusOK, contentType(format), buf.Bytes())
}

// Detect returns the faces found in the uploaded image.
func (s *Server) Detect(c *gin.Context) {
	img, err := s.upload(c)
	if err != nil {
		mapError(c, err)
		return
	}
	dets, err := s.detect(c, img)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.response(img, dets))
}

// Age detects faces and estimates the age of each.
func (s *Server) Age(c *gin.Context) {
	if s.estimator == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "age estimation is not enabled"})
		return
	}
	img, err := s.upload(c)
	if err != nil {
		mapError(c, err)
		return
	}
	dets, err := s.detect(c, img)
	if err != nil {
		mapError(c, err)
		return
	}

	resp := s.response(img, dets)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range dets {
		face, err := age.Crop(img, d.Box, ageCropMargin)
		if err != nil {
			continue
		}
		p, err := s.estimator.Estimate(c.Request.Context(), face)
		if errors.Is(err, age.ErrNoFace) {
			continue
		}
		if err != nil {
			mapError(c, err)
			return
		}
		resp.Faces[i].Age = &p
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) response(img image.Image, dets []detector.Detection) DetectResponse {
	b := img.Bounds()
	resp := DetectResponse{Detector: s.detector.Name(), Width: b.Dx(), Height: b.Dy(), Faces: make([]Face, len(dets))}
	for i, d := range dets {
		resp.Faces[i] = Face{Box: toBox(d.Box), Confidence: d.Confidence, Eyes: d.Eyes}
	}
	return resp
}

func (s *Server) detect(c *gin.Context, img *image.NRGBA) ([]detector.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dets, err := s.detector.Detect(c.Request.Context(), img)
	if err != nil {
		return nil, err
	}
	return detector.Clamp(dets, img.Bounds()), nil
}

func (s *Server) upload(c *gin.Context) (*image.NRGBA, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	fh, err := c.FormFile(formImage)
	if err != nil {
		return nil, fmt.Errorf("%w: multipart field %q: %w", errBadRequest, formImage, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	defer f.Close()

	img, err := privacy.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return img, nil
}

func (s *Server) effectParams(c *gin.Context) (effects.Name, int, error) {
	effect, level := s.effect, s.level
	if v := c.Query("effect"); v != "" {
		name, err := effects.Parse(v)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		effect = name
	}
	if v := c.Query("level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", 0, fmt.Errorf("%w: level %q is not a number", errBadRequest, v)
		}
		level = effects.ClampLevel(n)
	}
	return effect, level, nil
}

func contentType(f imaging.Format) string {
	if f == imaging.PNG {
		return "image/png"
	}
	return "image/jpeg"
}

func mapError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})

	case errors.Is(err, errBadRequest),
		errors.Is(err, detector.ErrEmptyImage),
		errors.Is(err, age.ErrNoFace):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, detector.ErrModelNotLoaded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
