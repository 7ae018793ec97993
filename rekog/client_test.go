package rekog

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	detectFacesFunc func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

func (m *mockAPI) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	if m.detectFacesFunc != nil {
		return m.detectFacesFunc(ctx, params, optFns...)
	}
	return &rekognition.DetectFacesOutput{}, nil
}

func TestDetectFacesConvertsRatios(t *testing.T) {
	var captured *rekognition.DetectFacesInput
	api := &mockAPI{
		detectFacesFunc: func(_ context.Context, params *rekognition.DetectFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			captured = params
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{
					{
						BoundingBox: &types.BoundingBox{
							Left: aws.Float32(0.25), Top: aws.Float32(0.5),
							Width: aws.Float32(0.5), Height: aws.Float32(0.25),
						},
						Confidence: aws.Float32(99.5),
						AgeRange:   &types.AgeRange{Low: aws.Int32(22), High: aws.Int32(30)},
						Landmarks: []types.Landmark{
							{Type: types.LandmarkTypeEyeLeft, X: aws.Float32(0.4), Y: aws.Float32(0.6)},
							{Type: types.LandmarkTypeNose, X: aws.Float32(0.5), Y: aws.Float32(0.65)},
						},
					},
					{Confidence: aws.Float32(90)},
				},
			}, nil
		},
	}

	c := NewWithAPI(api, WithAgeRange())
	faces, err := c.DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 200, 100)))

	require.NoError(t, err)
	require.Len(t, faces, 1, "details without a bounding box are skipped")
	assert.Equal(t, image.Rect(50, 50, 150, 75), faces[0].Box)
	assert.InDelta(t, 0.995, faces[0].Confidence, 1e-6)
	assert.Equal(t, 22, faces[0].AgeLow)
	assert.Equal(t, 30, faces[0].AgeHigh)
	assert.Equal(t, []image.Point{image.Pt(80, 60)}, faces[0].Eyes)

	require.NotNil(t, captured)
	assert.Equal(t, []types.Attribute{types.AttributeAll}, captured.Attributes)
	assert.NotEmpty(t, captured.Image.Bytes)
}

func TestDetectFacesDefaultAttributes(t *testing.T) {
	var attrs []types.Attribute
	api := &mockAPI{
		detectFacesFunc: func(_ context.Context, params *rekognition.DetectFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			attrs = params.Attributes
			return &rekognition.DetectFacesOutput{}, nil
		},
	}

	faces, err := NewWithAPI(api).DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))

	require.NoError(t, err)
	assert.Empty(t, faces)
	assert.Equal(t, []types.Attribute{types.AttributeDefault}, attrs)
}

func TestDetectFacesMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"access denied", "AccessDeniedException", ErrInvalidCredentials},
		{"bad image", "InvalidImageFormatException", ErrInvalidImage},
		{"invalid parameter", "InvalidParameterException", ErrInvalidImage},
		{"throttled", "ThrottlingException", ErrThrottled},
		{"throughput", "ProvisionedThroughputExceededException", ErrThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{
				detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput, ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, &smithy.GenericAPIError{Code: tt.code, Message: "nope"}
				},
			}
			_, err := NewWithAPI(api).DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDetectFacesPassesThroughUnknownErrors(t *testing.T) {
	boom := errors.New("connection reset")
	api := &mockAPI{
		detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput, ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return nil, boom
		},
	}
	_, err := NewWithAPI(api).DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, boom)
}
