package predict

// SimpleKeys are the measurement names accepted by the simple prediction
// mode, in resolution order.
var SimpleKeys = []string{
	"mean_radius",
	"mean_texture",
	"mean_perimeter",
	"mean_area",
	"mean_smoothness",
	"mean_compactness",
	"mean_concavity",
	"mean_concave_points",
	"mean_symmetry",
	"mean_fractal_dimension",
}

// SimpleDefaults holds the value used for each simple key the caller omits.
var SimpleDefaults = map[string]float64{
	"mean_radius":            14.0,
	"mean_texture":           19.0,
	"mean_perimeter":         91.0,
	"mean_area":              654.0,
	"mean_smoothness":        0.1,
	"mean_compactness":       0.1,
	"mean_concavity":         0.08,
	"mean_concave_points":    0.05,
	"mean_symmetry":          0.18,
	"mean_fractal_dimension": 0.06,
}

// SimpleInput holds a value for every simple key.
type SimpleInput map[string]float64

// NewSimpleInput applies SimpleDefaults to every key missing from partial.
// Keys outside SimpleKeys are ignored.
func NewSimpleInput(partial map[string]float64) SimpleInput {
	input := make(SimpleInput, len(SimpleKeys))
	for _, key := range SimpleKeys {
		if v, ok := partial[key]; ok {
			input[key] = v
			continue
		}
		input[key] = SimpleDefaults[key]
	}
	return input
}

// Mean is the arithmetic mean of all simple values, summed in key order.
func (in SimpleInput) Mean() float64 {
	var sum float64
	for _, key := range SimpleKeys {
		sum += in[key]
	}
	return sum / float64(len(SimpleKeys))
}
