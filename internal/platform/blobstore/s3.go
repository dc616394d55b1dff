package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Config holds the settings needed to reach an S3 bucket. Endpoint is
// optional and supports S3-compatible services (MinIO, R2).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3BlobStore stores blob content as S3 objects. Blob metadata travels as
// object metadata so no extra database table is needed.
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

// NewS3BlobStore builds an S3-backed BlobStore.
func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// Upload validates inputs, computes a SHA-256 hash, and writes the object.
func (s *S3BlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(meta.ID),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(meta.ContentType),
		Metadata:    encodeMeta(meta),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", meta.ID, err)
	}

	out := meta
	return &out, nil
}

// Download returns the object body and its metadata.
func (s *S3BlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("get object %s: %w", id, err)
	}

	meta := decodeMeta(id, obj.Metadata)
	if obj.ContentLength != nil {
		meta.Size = *obj.ContentLength
	}
	if obj.ContentType != nil {
		meta.ContentType = *obj.ContentType
	}

	return obj.Body, meta, nil
}

// Delete removes the object by ID. S3 deletes are idempotent, so the
// existence check goes through HeadObject first to honor ErrBlobNotFound.
func (s *S3BlobStore) Delete(ctx context.Context, id string) error {
	if _, err := s.head(ctx, id); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

// GetMetadata returns blob metadata without fetching content.
func (s *S3BlobStore) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	return s.head(ctx, id)
}

// ListByPatient returns blobs for a given patient, optionally filtered by
// category. It returns the matching page and the total count.
func (s *S3BlobStore) ListByPatient(ctx context.Context, patientID, category string, limit, offset int) ([]*BlobMetadata, int, error) {
	return s.Search(ctx, SearchParams{
		PatientID: patientID,
		Category:  category,
		Limit:     limit,
		Offset:    offset,
	})
}

// Search scans the bucket and filters objects by their stored metadata.
// Fine for the volumes a single deployment sees; a metadata index would be
// the next step if buckets grow past tens of thousands of objects.
func (s *S3BlobStore) Search(ctx context.Context, params SearchParams) ([]*BlobMetadata, int, error) {
	var matched []*BlobMetadata

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			meta, err := s.head(ctx, aws.ToString(obj.Key))
			if err != nil {
				continue
			}
			if matchesSearch(meta, params) {
				matched = append(matched, meta)
			}
		}
	}

	total := len(matched)
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

func (s *S3BlobStore) head(ctx context.Context, id string) (*BlobMetadata, error) {
	obj, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("head object %s: %w", id, err)
	}

	meta := decodeMeta(id, obj.Metadata)
	if obj.ContentLength != nil {
		meta.Size = *obj.ContentLength
	}
	if obj.ContentType != nil {
		meta.ContentType = *obj.ContentType
	}
	return meta, nil
}

func encodeMeta(meta BlobMetadata) map[string]string {
	m := map[string]string{
		"file-name":  meta.FileName,
		"category":   meta.Category,
		"hash":       meta.Hash,
		"created-at": meta.CreatedAt.Format(time.RFC3339),
		"created-by": meta.CreatedBy,
	}
	if meta.PatientID != "" {
		m["patient-id"] = meta.PatientID
	}
	if meta.DiagnosisID != "" {
		m["diagnosis-id"] = meta.DiagnosisID
	}
	for k, v := range meta.Tags {
		m["tag-"+k] = v
	}
	return m
}

func decodeMeta(id string, raw map[string]string) *BlobMetadata {
	meta := &BlobMetadata{
		ID:          id,
		FileName:    raw["file-name"],
		Category:    raw["category"],
		Hash:        raw["hash"],
		CreatedBy:   raw["created-by"],
		PatientID:   raw["patient-id"],
		DiagnosisID: raw["diagnosis-id"],
	}
	if at, err := time.Parse(time.RFC3339, raw["created-at"]); err == nil {
		meta.CreatedAt = at
	}
	for k, v := range raw {
		if strings.HasPrefix(k, "tag-") {
			if meta.Tags == nil {
				meta.Tags = make(map[string]string)
			}
			meta.Tags[strings.TrimPrefix(k, "tag-")] = v
		}
	}
	return meta
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// HeadObject surfaces 404s as a generic API error
	return strings.Contains(err.Error(), "StatusCode: "+strconv.Itoa(404))
}
