package models

import (
	"database/sql/driver"
	"encoding/json"
)

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusMatched   ReportStatus = "matched"
	ReportStatusCompleted ReportStatus = "completed"
)

// Report is a citizen-submitted e-waste sighting.
type Report struct {
	ID                 string       `json:"id" db:"id"`
	UserID             string       `json:"user_id" db:"user_id"`
	Location           string       `json:"location" db:"location"` // Free-form address, geocoded on demand
	WasteType          string       `json:"waste_type" db:"waste_type"`
	Amount             float64      `json:"amount" db:"amount"`
	ImageURL           string       `json:"image_url" db:"image_url"`
	ImageHash          string       `json:"-" db:"image_hash"`
	VerificationResult RawJSON      `json:"verification_result,omitempty" db:"verification_result"` // Opaque classifier output
	Status             ReportStatus `json:"status" db:"status"`
	CreatedAt          int64        `json:"created_at" db:"created_at"`
}

// ReportSnapshot is the copy of a report embedded in its task. It is stored as JSONB so
// later edits to the report never rewrite task history.
type ReportSnapshot Report

func (s ReportSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(Report(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ReportSnapshot) Scan(src interface{}) error {
	var r Report
	if err := scanJSON(src, &r); err != nil {
		return err
	}
	*s = ReportSnapshot(r)
	return nil
}

func (s ReportSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(Report(s))
}

func (s *ReportSnapshot) UnmarshalJSON(data []byte) error {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*s = ReportSnapshot(r)
	return nil
}

// CreateReportRequest carries the form fields of POST /api/reports (the image travels
// as a multipart file).
type CreateReportRequest struct {
	Location  string  `json:"location"`
	WasteType string  `json:"waste_type"`
	Amount    float64 `json:"amount"`
}
