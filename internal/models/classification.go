package models

// Classification is the image classifier's verdict on a photo.
type Classification struct {
	ContainsWaste bool    `json:"containsWaste"`
	WasteType     string  `json:"wasteType"`
	Amount        float64 `json:"amount"` // estimated kg
	Confidence    float64 `json:"confidence"`
}

// Accepted reports whether the photo shows e-waste with enough confidence.
func (c *Classification) Accepted(minConfidence float64) bool {
	return c != nil && c.ContainsWaste && c.Confidence >= minConfidence
}
