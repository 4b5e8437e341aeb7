package model

// ScanLabelInvalid marks an image the detector rejected.
const ScanLabelInvalid = "invalid"

type MRIScanRequest struct {
	PatientID   int64  `json:"patient_id" binding:"required,gt=0"`
	ImageBase64 string `json:"image_base64" binding:"required"`
}

type DetectionResult struct {
	ClassIndex int     `json:"class_index"`
	Confidence float64 `json:"confidence"`
	Valid      bool    `json:"valid"`
}

type ClassificationResult struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

type SegmentationResult struct {
	AnnotatedImage string  `json:"annotated_image"`
	MaskBase64     *string `json:"mask_base64"`
}

// ScanResponse is returned by the MRI scan endpoint. For an image the
// detector rejects, Classification carries ScanLabelInvalid with the
// detection confidence and Segmentation is nil.
type ScanResponse struct {
	RecordID       int64                 `json:"record_id"`
	ScanResult     string                `json:"scan_result"`
	Detection      *DetectionResult      `json:"detection"`
	Classification *ClassificationResult `json:"classification"`
	Segmentation   *SegmentationResult   `json:"segmentation,omitempty"`
}
