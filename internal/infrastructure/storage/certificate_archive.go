// Package storage keeps issued certificates in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hobby-university/learner-hub/internal/domain/certificate"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/circuitbreaker"
)

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// OnBreakerChange is called when the archive's circuit breaker changes state.
	OnBreakerChange func(name string, from, to circuitbreaker.State)
}

// CertificateArchive implements certificate.Archive on a MinIO/S3 bucket.
// Certificates are stored as JSON under certificates/<ID>.json.
type CertificateArchive struct {
	client   *minio.Client
	bucket   string
	region   string
	validate *validator.Validate
	breaker  *circuitbreaker.Breaker
}

var _ certificate.Archive = (*CertificateArchive)(nil)

// NewCertificateArchive creates the MinIO client. It does not touch the network.
func NewCertificateArchive(cfg Config) (*CertificateArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &CertificateArchive{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		breaker:  circuitbreaker.ObjectStorage(countsAsFailure, cfg.OnBreakerChange),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (a *CertificateArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Ping checks that the bucket is reachable.
func (a *CertificateArchive) Ping(ctx context.Context) error {
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}

// Put stores the certificate and returns its object key.
func (a *CertificateArchive) Put(ctx context.Context, cert *certificate.Certificate) (string, error) {
	if err := a.validate.Struct(cert); err != nil {
		return "", shared.WrapError("storage", "Put", shared.ErrValidation, "invalid certificate", err)
	}

	data, err := sonic.Marshal(cert)
	if err != nil {
		return "", fmt.Errorf("failed to encode certificate: %w", err)
	}

	key := ObjectKey(cert.CertificateID)
	err = a.execute(ctx, func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload certificate: %w", err)
	}

	return key, nil
}

// Get loads a stored certificate by ID.
func (a *CertificateArchive) Get(ctx context.Context, certificateID string) (*certificate.Certificate, error) {
	var data []byte
	err := a.execute(ctx, func(ctx context.Context) error {
		obj, err := a.client.GetObject(ctx, a.bucket, ObjectKey(certificateID), minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		data, err = io.ReadAll(obj)
		return err
	})
	if err != nil {
		return nil, a.mapError(err)
	}

	var cert certificate.Certificate
	if err := sonic.Unmarshal(data, &cert); err != nil {
		return nil, shared.WrapError("storage", "Get", shared.ErrDecoding, "malformed certificate object", err)
	}
	if err := a.validate.Struct(&cert); err != nil {
		return nil, shared.WrapError("storage", "Get", shared.ErrDecoding, "malformed certificate object", err)
	}

	return &cert, nil
}

// execute runs fn through the circuit breaker. An open circuit is reported
// as shared.ErrServiceUnavailable.
func (a *CertificateArchive) execute(ctx context.Context, fn func(context.Context) error) error {
	err := a.breaker.Execute(ctx, fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return shared.WrapError("storage", "Execute", shared.ErrServiceUnavailable, "certificate archive unavailable", err)
	}
	return err
}

// BreakerState reports the state of the archive's circuit breaker.
func (a *CertificateArchive) BreakerState() circuitbreaker.State {
	return a.breaker.State()
}

func (a *CertificateArchive) mapError(err error) error {
	if isNoSuchKey(err) {
		return shared.ErrNotFound
	}
	if errors.Is(err, shared.ErrServiceUnavailable) {
		return err
	}
	return fmt.Errorf("failed to download certificate: %w", err)
}

func errorCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}

func isNoSuchKey(err error) bool {
	return errorCode(err) == "NoSuchKey"
}

// IsAccessError reports credentials or a bucket policy the server rejected.
// Retrying such an error does not help.
func IsAccessError(err error) bool {
	switch errorCode(err) {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	}
	return false
}

// countsAsFailure keeps missing objects and cancelled requests from opening the circuit.
func countsAsFailure(err error) bool {
	if isNoSuchKey(err) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// ObjectKey returns the object name of a certificate.
func ObjectKey(certificateID string) string {
	return "certificates/" + certificateID + ".json"
}
