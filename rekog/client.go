// Package rekog wraps the AWS Rekognition DetectFaces call used by the cloud
// detector and the cloud age estimator.
package rekog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
)

const (
	errCodeAccessDenied     = "AccessDeniedException"
	errCodeInvalidParameter = "InvalidParameterException"
	errCodeInvalidImage     = "InvalidImageFormatException"
	errCodeImageTooLarge    = "ImageTooLargeException"
	errCodeThrottling       = "ThrottlingException"
	errCodeProvisioned      = "ProvisionedThroughputExceededException"

	// MaxImageBytes is the Rekognition limit for inline image bytes.
	MaxImageBytes = 5 * 1024 * 1024
)

// Errors returned by Client.
var (
	ErrInvalidCredentials = errors.New("rekognition: invalid credentials")
	ErrInvalidImage       = errors.New("rekognition: invalid image")
	ErrThrottled          = errors.New("rekognition: throttled")
)

// API is the subset of the Rekognition client used here.
type API interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// Face is one face reported by Rekognition, in pixel coordinates.
type Face struct {
	Box        image.Rectangle
	Confidence float64
	AgeLow     int
	AgeHigh    int
	Eyes       []image.Point
}

// Client sends frames to Rekognition.
type Client struct {
	api         API
	withAge     bool
	jpegQuality int
}

// Option configures a Client.
type Option func(*Client)

// WithAgeRange requests the full attribute set so AgeRange is populated.
func WithAgeRange() Option {
	return func(c *Client) { c.withAge = true }
}

// WithJPEGQuality sets the quality used to encode frames for upload.
func WithJPEGQuality(q int) Option {
	return func(c *Client) { c.jpegQuality = q }
}

// New creates a client using the default AWS credential chain.
func New(ctx context.Context, region string, opts ...Option) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithAPI(rekognition.NewFromConfig(awsCfg), opts...), nil
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API, opts ...Option) *Client {
	c := &Client{api: api, jpegQuality: 90}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectFaces encodes img as JPEG and returns the faces Rekognition finds.
// No faces is an empty slice, not an error.
func (c *Client) DetectFaces(ctx context.Context, img image.Image) ([]Face, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if buf.Len() > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidImage, buf.Len(), MaxImageBytes)
	}

	attrs := []types.Attribute{types.AttributeDefault}
	if c.withAge {
		attrs = []types.Attribute{types.AttributeAll}
	}

	out, err := c.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: buf.Bytes()},
		Attributes: attrs,
	})
	if err != nil {
		return nil, mapError(err)
	}

	b := img.Bounds()
	faces := make([]Face, 0, len(out.FaceDetails))
	for _, detail := range out.FaceDetails {
		if detail.BoundingBox == nil {
			continue
		}
		f := Face{
			Box:        ratioBox(detail.BoundingBox, b),
			Confidence: float64(aws.ToFloat32(detail.Confidence)) / 100,
		}
		if detail.AgeRange != nil {
			f.AgeLow = int(aws.ToInt32(detail.AgeRange.Low))
			f.AgeHigh = int(aws.ToInt32(detail.AgeRange.High))
		}
		for _, lm := range detail.Landmarks {
			if lm.Type == types.LandmarkTypeEyeLeft || lm.Type == types.LandmarkTypeEyeRight {
				f.Eyes = append(f.Eyes, ratioPoint(aws.ToFloat32(lm.X), aws.ToFloat32(lm.Y), b))
			}
		}
		faces = append(faces, f)
	}
	return faces, nil
}

func ratioBox(bb *types.BoundingBox, b image.Rectangle) image.Rectangle {
	left := aws.ToFloat32(bb.Left)
	top := aws.ToFloat32(bb.Top)
	w := aws.ToFloat32(bb.Width)
	h := aws.ToFloat32(bb.Height)
	return image.Rectangle{
		Min: ratioPoint(left, top, b),
		Max: ratioPoint(left+w, top+h, b),
	}
}

func ratioPoint(x, y float32, b image.Rectangle) image.Point {
	return image.Pt(
		b.Min.X+int(x*float32(b.Dx())),
		b.Min.Y+int(y*float32(b.Dy())),
	)
}

func mapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied:
			return fmt.Errorf("detect faces: %w", ErrInvalidCredentials)
		case errCodeInvalidParameter, errCodeInvalidImage, errCodeImageTooLarge:
			return fmt.Errorf("detect faces: %w: %s", ErrInvalidImage, apiErr.ErrorMessage())
		case errCodeThrottling, errCodeProvisioned:
			return fmt.Errorf("detect faces: %w", ErrThrottled)
		}
	}
	return fmt.Errorf("detect faces: %w", err)
}
