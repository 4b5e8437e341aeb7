// Package scan runs an uploaded MRI image through detection, classification
// and segmentation and stores the outcome on the record.
package scan

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/neuroscan-api/internal/inference"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/internal/service/record"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
)

const (
	DefaultDetectionThreshold = 0.70

	// InvalidScanResult is stored when the detector rejects the image.
	InvalidScanResult = "Invalid MRI – not a brain scan"
)

type Service struct {
	records   repository.RecordRepository
	guard     *record.Guard
	client    inference.Client
	notifier  notification.Service
	threshold float64
	log       *logger.Logger
}

func NewService(records repository.RecordRepository, client inference.Client, notifier notification.Service, threshold float64, l *logger.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDetectionThreshold
	}
	if l == nil {
		l = logger.FromGlobal()
	}
	return &Service{
		records:   records,
		guard:     record.NewGuard(records),
		client:    client,
		notifier:  notifier,
		log:       l.Named("scan"),
		threshold: threshold,
	}
}

// Scan checks ownership, runs the pipeline and writes the result.
func (s *Service) Scan(ctx context.Context, doctorEmail string, req *model.MRIScanRequest) (*model.ScanResponse, error) {
	image, err := normalizeImage(req.ImageBase64)
	if err != nil {
		return nil, apperrors.BadRequest("image_base64 is not valid base64", err)
	}

	if _, err := s.guard.DoctorRecord(ctx, doctorEmail, req.PatientID); err != nil {
		return nil, err
	}

	det, err := s.client.Detect(ctx, image)
	if err != nil {
		return nil, upstream(err)
	}
	det.Valid = det.ClassIndex != 0 && det.Confidence >= s.threshold

	resp := &model.ScanResponse{RecordID: req.PatientID, Detection: det}
	var update model.ScanUpdate

	if !det.Valid {
		update.ScanResult = InvalidScanResult
		resp.Classification = &model.ClassificationResult{Label: model.ScanLabelInvalid, Confidence: det.Confidence}
	} else {
		cls, err := s.client.Classify(ctx, image)
		if err != nil {
			return nil, upstream(err)
		}
		seg, err := s.client.Segment(ctx, image, cls.Label, cls.Confidence)
		if err != nil {
			return nil, upstream(err)
		}
		update = model.ScanUpdate{
			ScanResult:       FormatResult(cls.Label, cls.Confidence),
			ProcessedImage:   &seg.AnnotatedImage,
			SegmentationMask: seg.MaskBase64,
		}
		resp.Classification = cls
		resp.Segmentation = seg
	}
	resp.ScanResult = update.ScanResult

	if err := s.records.UpdateScan(ctx, doctorEmail, req.PatientID, update); err != nil {
		return nil, record.Deny(err)
	}

	event := model.RecordEvent{
		RecordID:    req.PatientID,
		DoctorEmail: doctorEmail,
		ScanResult:  update.ScanResult,
	}
	if err := s.notifier.Enqueue(ctx, model.EventRecordScanned, event); err != nil {
		s.log.Error(err, "Failed to queue scan event", "record_id", req.PatientID)
	}
	return resp, nil
}

// FormatResult renders the stored scan_result for a classified image.
func FormatResult(label string, confidence float64) string {
	return fmt.Sprintf("%s (Conf: %.2f)", label, confidence)
}

// normalizeImage strips a data URL prefix and checks the payload decodes.
func normalizeImage(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return "", errors.New("empty image")
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return "", err
	}
	return s, nil
}

func upstream(err error) error {
	if errors.Is(err, inference.ErrRejected) {
		return apperrors.BadRequest("image rejected by inference service", err)
	}
	return apperrors.Upstream("inference service", err)
}
