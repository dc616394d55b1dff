package blobstore

import (
	"context"
	"testing"
	"time"
)

var _ BlobStore = (*S3BlobStore)(nil)

func TestEncodeDecodeMeta_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	in := BlobMetadata{
		ID:          "blob-1",
		FileName:    "scan.dcm",
		Category:    "scan-image",
		Hash:        "abc123",
		CreatedAt:   created,
		CreatedBy:   "user-1",
		PatientID:   "patient-9",
		DiagnosisID: "diag-4",
		Tags:        map[string]string{"modality": "ct"},
	}

	out := decodeMeta("blob-1", encodeMeta(in))

	if out.FileName != in.FileName {
		t.Errorf("file name = %q, want %q", out.FileName, in.FileName)
	}
	if out.Category != in.Category {
		t.Errorf("category = %q, want %q", out.Category, in.Category)
	}
	if out.Hash != in.Hash {
		t.Errorf("hash = %q, want %q", out.Hash, in.Hash)
	}
	if !out.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", out.CreatedAt, created)
	}
	if out.PatientID != "patient-9" {
		t.Errorf("patient_id = %q, want patient-9", out.PatientID)
	}
	if out.DiagnosisID != "diag-4" {
		t.Errorf("diagnosis_id = %q, want diag-4", out.DiagnosisID)
	}
	if out.Tags["modality"] != "ct" {
		t.Errorf("tags = %v, want modality=ct", out.Tags)
	}
}

func TestDecodeMeta_OmitsEmptyFields(t *testing.T) {
	out := decodeMeta("blob-2", encodeMeta(BlobMetadata{FileName: "report.pdf", Category: "report"}))

	if out.PatientID != "" {
		t.Errorf("patient_id = %q, want empty", out.PatientID)
	}
	if out.Tags != nil {
		t.Errorf("tags = %v, want nil", out.Tags)
	}
}

func TestNewS3BlobStore_RequiresBucket(t *testing.T) {
	_, err := NewS3BlobStore(context.Background(), S3Config{Region: "us-east-1"})
	if err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
