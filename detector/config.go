package detector

// Config carries the settings any backend may need. Backends read the fields
// that apply to them and ignore the rest.
type Config struct {
	ModelPath    string
	ConfigPath   string
	Threshold    float64
	IouThreshold float64
	InputSize    int

	// pigo
	Angle       float64
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	Puploc      string

	// Haar
	MinNeighbors int

	// Rekognition
	Region string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.4,
		IouThreshold: 0.45,
		InputSize:    640,
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		Region:       "us-east-1",
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Threshold == 0 {
		c.Threshold = d.Threshold
	}
	if c.IouThreshold == 0 {
		c.IouThreshold = d.IouThreshold
	}
	if c.InputSize == 0 {
		c.InputSize = d.InputSize
	}
	if c.MinSize == 0 {
		c.MinSize = d.MinSize
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.ShiftFactor == 0 {
		c.ShiftFactor = d.ShiftFactor
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = d.ScaleFactor
	}
	if c.MinNeighbors == 0 {
		c.MinNeighbors = d.MinNeighbors
	}
	if c.Region == "" {
		c.Region = d.Region
	}
	return c
}
