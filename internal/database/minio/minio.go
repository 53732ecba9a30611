package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"insurance-ledger/internal/config"
	"insurance-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ClaimReportsBucket holds archived claim reports as JSON objects.
const ClaimReportsBucket = "claim-reports"

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ReportStore archives claim reports in MinIO.
type ReportStore struct {
	client  objectPutter
	baseURL string
	bucket  string
}

// NewReportStore connects to MinIO and makes sure the report bucket exists.
func NewReportStore(cfg config.MinioConfig) (*ReportStore, error) {
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		log.Printf("Invalid value for MinIO secure flag: %v. Defaulting to false.", err)
		isSecure = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ensureBucket(ctx, client, ClaimReportsBucket, cfg.MinioLocation); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket %s: %w", ClaimReportsBucket, err)
	}

	log.Printf("Successfully connected to MinIO at %s", cfg.MinioURL)
	return &ReportStore{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.MinioURL, "/"),
		bucket:  ClaimReportsBucket,
	}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucketName, region string) error {
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucketName, err)
	}
	log.Printf("Created bucket: %s", bucketName)
	return nil
}

func reportObjectName(report models.ClaimReport) string {
	return fmt.Sprintf("policy-%d/claim-%d/%d-%s.json",
		report.Policy.ID, report.Claim.ID, report.GeneratedAtTick, uuid.NewString())
}

// ArchiveClaimReport uploads the report as JSON and returns its object URL.
func (s *ReportStore) ArchiveClaimReport(ctx context.Context, report models.ClaimReport) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claim report: %w", err)
	}

	objectName := reportObjectName(report)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", objectName, s.bucket, err)
	}

	log.Printf("Archived claim report %s (%d bytes)", objectName, len(data))
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, objectName), nil
}
