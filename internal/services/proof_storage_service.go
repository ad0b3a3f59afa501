package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProofStorageService stores proof-of-transfer images. Uploads resolve
// to an object key before any invoice transaction starts; the
// transaction only ever sees the resulting URL.
type ProofStorageService interface {
	UploadProof(ctx context.Context, tenantID, invoiceID uuid.UUID, reader io.Reader, size int64, contentType string) (string, error)
	GetPresignedURL(objectKey string, expiry time.Duration) (string, error)
	EnsureBucketExists(ctx context.Context) error
}

const proofBucket = "payment-proofs"

type proofStorage struct {
	client *minio.Client
}

func NewProofStorageService(endpoint, accessKey, secretKey string, useSSL bool) (ProofStorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &proofStorage{client: client}, nil
}

func (s *proofStorage) UploadProof(ctx context.Context, tenantID, invoiceID uuid.UUID, reader io.Reader, size int64, contentType string) (string, error) {
	objectKey := fmt.Sprintf("%s/%s/%d", tenantID, invoiceID, time.Now().UnixNano())
	_, err := s.client.PutObject(ctx, proofBucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func (s *proofStorage) GetPresignedURL(objectKey string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(context.Background(), proofBucket, objectKey, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func (s *proofStorage) EnsureBucketExists(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, proofBucket)
	if err != nil {
		return err
	}
	if !found {
		return s.client.MakeBucket(ctx, proofBucket, minio.MakeBucketOptions{})
	}
	return nil
}
