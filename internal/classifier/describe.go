package classifier

import "golang.org/x/text/cases"

// FallbackDescription is used for labels without a curated description.
const FallbackDescription = "No description available for this result."

var descriptions = foldKeys(map[string]string{
	"Benign": "The lesion shows features commonly associated with benign skin growths. " +
		"Keep monitoring it and consult a dermatologist if it changes in size, shape or colour.",
	"Malignant": "The lesion shows features that may indicate malignancy. " +
		"Please arrange a professional examination by a dermatologist as soon as possible.",
	"akiec": "Actinic keratosis or intraepithelial carcinoma: a sun-damage related lesion " +
		"that can progress and should be assessed by a dermatologist.",
	"bcc": "Basal cell carcinoma: a common, slow-growing skin cancer. " +
		"A dermatologist should examine it.",
	"bkl": "Benign keratosis-like lesion, such as a seborrheic keratosis or solar lentigo.",
	"df":  "Dermatofibroma: a benign fibrous skin nodule.",
	"mel": "Melanoma: a potentially dangerous skin cancer. " +
		"Please see a dermatologist promptly.",
	"nv":   "Melanocytic nevus: a common mole, usually benign.",
	"vasc": "Vascular lesion, such as a cherry angioma or pyogenic granuloma.",
})

// DefaultPositiveLabels are treated as concerning in multi-class output.
var DefaultPositiveLabels = []string{"Malignant", "mel", "bcc", "akiec"}

func fold(s string) string {
	// A Caser is stateful; one per call.
	return cases.Fold().String(s)
}

func foldKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[fold(k)] = v
	}
	return out
}

// Describe returns a human readable description for label, matched without
// regard to case.
func Describe(label string) string {
	if d, ok := descriptions[fold(label)]; ok {
		return d
	}
	return FallbackDescription
}

type labelSet map[string]struct{}

func newLabelSet(labels []string) labelSet {
	s := make(labelSet, len(labels))
	for _, l := range labels {
		s[fold(l)] = struct{}{}
	}
	return s
}

func (s labelSet) contains(label string) bool {
	_, ok := s[fold(label)]
	return ok
}
