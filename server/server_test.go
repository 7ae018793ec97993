package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thaitanloi365/go-face-privacy/age"
	"thaitanloi365/go-face-privacy/detector"
)

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Name() string { return "mock" }

func (m *mockDetector) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	args := m.Called(ctx, img)
	dets, _ := args.Get(0).([]detector.Detection)
	return dets, args.Error(1)
}

func (m *mockDetector) Close() error { return nil }

type fixedEstimator struct{ p age.Prediction }

func (f fixedEstimator) Estimate(context.Context, image.Image) (age.Prediction, error) {
	return f.p, nil
}
func (f fixedEstimator) Close() error { return nil }

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRouter(d detector.Detector, opts ...Option) *gin.Engine {
	gin.SetMode(gin.TestMode)
	opts = append(opts, WithLogger(slogDiscard()))
	return New(d, opts...).Router()
}

func pngBody(t *testing.T, w, h int) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, imaging.New(w, h, color.White)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(formImage, "face.png")
	require.NoError(t, err)
	_, err = io.Copy(part, &img)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func post(t *testing.T, r *gin.Engine, url string, w, h int) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := pngBody(t, w, h)
	req, _ := http.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func oneFace() []detector.Detection {
	return []detector.Detection{{Box: image.Rect(8, 8, 40, 40), Confidence: 0.93}}
}

func TestHealth(t *testing.T) {
	r := setupRouter(new(mockDetector))

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
	assert.JSONEq(t, `{"status":"ok","detector":"mock"}`, w.Body.String())
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := setupRouter(new(mockDetector))

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(headerRequestID))
}

func TestListEffects(t *testing.T) {
	r := setupRouter(new(mockDetector))

	req, _ := http.NewRequest(http.MethodGet, "/v1/effects", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["effects"], 6)
	assert.Equal(t, float64(5), resp["min_level"])
	assert.Equal(t, float64(50), resp["max_level"])
}

func TestAnonymize(t *testing.T) {
	d := new(mockDetector)
	d.On("Detect", mock.Anything, mock.Anything).Return(oneFace(), nil)
	r := setupRouter(d)

	w := post(t, r, "/v1/anonymize?effect=blackbox&format=png", 64, 64)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get(headerFaceCount))
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	out, err := png.Decode(w.Body)
	require.NoError(t, err)
	r0, g0, b0, _ := out.At(24, 24).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r0, g0, b0})
	d.AssertExpectations(t)
}

func TestAnonymizeDefaultsToJPEG(t *testing.T) {
	d := new(mockDetector)
	d.On("Detect", mock.Anything, mock.Anything).Return(nil, nil)
	r := setupRouter(d)

	w := post(t, r, "/v1/anonymize", 16, 16)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get(headerFaceCount))
}

func TestAnonymizeBadParams(t *testing.T) {
	r := setupRouter(new(mockDetector))

	w := post(t, r, "/v1/anonymize?effect=sparkles", 16, 16)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, "/v1/anonymize?level=lots", 16, 16)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnonymizeMissingFile(t *testing.T) {
	r := setupRouter(new(mockDetector))

	req, _ := http.NewRequest(http.MethodPost, "/v1/anonymize", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetect(t *testing.T) {
	d := new(mockDetector)
	d.On("Detect", mock.Anything, mock.Anything).Return([]detector.Detection{
		{Box: image.Rect(8, 8, 40, 40), Confidence: 0.93},
		{Box: image.Rect(100, 100, 120, 120), Confidence: 0.5},
	}, nil)
	r := setupRouter(d)

	w := post(t, r, "/v1/detect", 64, 48)

	require.Equal(t, http.StatusOK, w.Code)
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "mock", resp.Detector)
	assert.Equal(t, 64, resp.Width)
	assert.Equal(t, 48, resp.Height)
	require.Len(t, resp.Faces, 1, "faces outside the image are dropped")
	assert.Equal(t, Box{X: 8, Y: 8, Width: 32, Height: 32}, resp.Faces[0].Box)
}

func TestDetectErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"model missing", detector.ErrModelNotLoaded, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(mockDetector)
			d.On("Detect", mock.Anything, mock.Anything).Return(nil, tt.err)
			w := post(t, setupRouter(d), "/v1/detect", 16, 16)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAge(t *testing.T) {
	d := new(mockDetector)
	d.On("Detect", mock.Anything, mock.Anything).Return(oneFace(), nil)
	r := setupRouter(d, WithEstimator(fixedEstimator{p: age.Prediction{Label: "20-29", Score: 0.8, Low: 20, High: 29}}))

	w := post(t, r, "/v1/age", 64, 64)

	require.Equal(t, http.StatusOK, w.Code)
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Faces, 1)
	require.NotNil(t, resp.Faces[0].Age)
	assert.Equal(t, "20-29", resp.Faces[0].Age.Label)
}

// scriptedEstimator returns one queued result per call.
type scriptedEstimator struct {
	results []error
	p       age.Prediction
}

func (s *scriptedEstimator) Estimate(context.Context, image.Image) (age.Prediction, error) {
	err := s.results[0]
	s.results = s.results[1:]
	if err != nil {
		return age.Prediction{}, err
	}
	return s.p, nil
}

func (s *scriptedEstimator) Close() error { return nil }

func TestAgeSkipsCropsWithoutFace(t *testing.T) {
	d := new(mockDetector)
	d.On("Detect", mock.Anything, mock.Anything).Return([]detector.Detection{
		{Box: image.Rect(4, 4, 28, 28), Confidence: 0.9},
		{Box: image.Rect(34, 34, 60, 60), Confidence: 0.8},
	}, nil)
	est := &scriptedEstimator{results: []error{nil, age.ErrNoFace}, p: age.Prediction{Label: "30-39", Low: 30, High: 39}}
	r := setupRouter(d, WithEstimator(est))

	w := post(t, r, "/v1/age", 64, 64)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Faces, 2)
	require.NotNil(t, resp.Faces[0].Age)
	assert.Equal(t, "30-39", resp.Faces[0].Age.Label)
	assert.Nil(t, resp.Faces[1].Age)
}

func TestAgeEstimatorFailure(t *testing.T) {
	d := new(mockDetector)
	d.On("Detect", mock.Anything, mock.Anything).Return(oneFace(), nil)
	r := setupRouter(d, WithEstimator(&scriptedEstimator{results: []error{errors.New("boom")}}))

	w := post(t, r, "/v1/age", 64, 64)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAgeDisabled(t *testing.T) {
	w := post(t, setupRouter(new(mockDetector)), "/v1/age", 16, 16)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
