// Package models knows where the pretrained weights live and keeps a local
// cache of them.
package models

import (
	"sort"
)

// Kind groups models by use.
type Kind string

// Kinds.
const (
	KindDetector Kind = "detector"
	KindAge      Kind = "age"
)

// File is one downloadable artifact.
type File struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	// SHA256 is verified after download when set.
	SHA256 string `json:"sha256,omitempty"`
}

// Model is a named set of files. The first file is the weights; a second
// file, when present, is the network description.
type Model struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Files       []File `json:"files"`
}

// DefaultCatalog lists the models the detectors and age estimators load.
var DefaultCatalog = []Model{
	{
		Name:        "yolo",
		Kind:        KindDetector,
		Description: "YOLOv8n face detector, ONNX export",
		Files: []File{{
			Name: "yolov8n-face.onnx",
			URL:  "https://github.com/akanametov/yolo-face/releases/download/v0.0.0/yolov8n-face.onnx",
		}},
	},
	{
		Name:        "yunet",
		Kind:        KindDetector,
		Description: "YuNet lightweight face detector (OpenCV zoo)",
		Files: []File{{
			Name: "face_detection_yunet_2023mar.onnx",
			URL:  "https://github.com/opencv/opencv_zoo/raw/main/models/face_detection_yunet/face_detection_yunet_2023mar.onnx",
		}},
	},
	{
		Name:        "ssd",
		Kind:        KindDetector,
		Description: "ResNet-10 SSD face detector (Caffe)",
		Files: []File{
			{
				Name: "res10_300x300_ssd_iter_140000.caffemodel",
				URL:  "https://raw.githubusercontent.com/opencv/opencv_3rdparty/dnn_samples_face_detector_20170830/res10_300x300_ssd_iter_140000.caffemodel",
			},
			{
				Name: "deploy.prototxt",
				URL:  "https://raw.githubusercontent.com/opencv/opencv/master/samples/dnn/face_detector/deploy.prototxt",
			},
		},
	},
	{
		Name:        "haar",
		Kind:        KindDetector,
		Description: "Haar cascade, frontal face",
		Files: []File{{
			Name: "haarcascade_frontalface_default.xml",
			URL:  "https://raw.githubusercontent.com/opencv/opencv/master/data/haarcascades/haarcascade_frontalface_default.xml",
		}},
	},
	{
		Name:        "pigo",
		Kind:        KindDetector,
		Description: "Pigo pixel intensity comparison cascade with pupil localization",
		Files: []File{
			{Name: "facefinder", URL: "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"},
			{Name: "puploc", URL: "https://raw.githubusercontent.com/esimov/pigo/master/cascade/puploc"},
		},
	},
	{
		Name:        "age-caffe",
		Kind:        KindAge,
		Description: "Levi-Hassner age classifier (Caffe)",
		Files: []File{
			{Name: "age_net.caffemodel", URL: "https://github.com/smahesh29/Gender-and-Age-Detection/raw/master/age_net.caffemodel"},
			{Name: "age_deploy.prototxt", URL: "https://raw.githubusercontent.com/smahesh29/Gender-and-Age-Detection/master/age_deploy.prototxt"},
		},
	},
	{
		Name:        "age-vit",
		Kind:        KindAge,
		Description: "nateraw/vit-age-classifier exported to ONNX (place the file manually)",
		Files:       []File{{Name: "vit-age-classifier.onnx"}},
	},
}

// Catalog indexes models by name.
type Catalog map[string]Model

// NewCatalog builds a catalog from models.
func NewCatalog(models []Model) Catalog {
	c := make(Catalog, len(models))
	for _, m := range models {
		c[m.Name] = m
	}
	return c
}

// Names returns the model names, sorted.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByKind returns the names of models of kind k, sorted.
func (c Catalog) ByKind(k Kind) []string {
	var names []string
	for n, m := range c {
		if m.Kind == k {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
