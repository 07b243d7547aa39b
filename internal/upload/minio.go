package upload

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// MinioConfig holds the object storage destination
type MinioConfig struct {
	Endpoint  string
	Bucket    string
	Folder    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// MinioUploader stores files as objects instead of posting them to /upload.
type MinioUploader struct {
	client *minio.Client
	bucket string
	folder string
	log    logrus.FieldLogger
}

// NewMinioUploader creates a new uploader backed by a MinIO/S3 bucket
func NewMinioUploader(cfg MinioConfig, log logrus.FieldLogger) (*MinioUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Transport:    tr,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %v", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder != "" {
		folder += "/"
	}

	return &MinioUploader{client: client, bucket: cfg.Bucket, folder: folder, log: log}, nil
}

// Start begins the upload in the background. A stored object is reported as status 200.
func (u *MinioUploader) Start(ctx context.Context, req Request) *Task {
	return NewTask(ctx, func(ctx context.Context, report func(Progress)) Result {
		return u.put(ctx, req, report)
	})
}

func (u *MinioUploader) put(ctx context.Context, req Request, report func(Progress)) Result {
	key := u.folder + sanitizeKey(req.File.Name)
	log := u.log.WithFields(logrus.Fields{"upload_id": req.ID, "bucket": u.bucket, "key": key})

	f, err := os.Open(req.File.Path)
	if err != nil {
		log.WithError(err).Error("failed to open file")
		return Result{Err: fmt.Errorf("failed to open file %s: %w", req.File.Path, err)}
	}
	defer f.Close()

	total := req.File.Size
	if total < 0 {
		total = 0
	}

	info, err := u.client.PutObject(ctx, u.bucket, key, f, req.File.Size, minio.PutObjectOptions{
		ContentType: req.File.MimeType,
		UserMetadata: map[string]string{
			"original-name": url.QueryEscape(req.File.Name),
			"upload-id":     req.ID,
		},
		Progress: &progressSink{total: total, report: report},
	})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode != 0 {
			log.WithFields(logrus.Fields{
				"status": resp.StatusCode,
				"code":   resp.Code,
			}).Warn("object storage rejected upload")
			return Result{StatusCode: resp.StatusCode}
		}
		log.WithError(err).Warn("upload failed before a response was received")
		return Result{Err: err}
	}

	if req.File.Size >= 0 && info.Size != req.File.Size {
		log.WithFields(logrus.Fields{"expected": req.File.Size, "actual": info.Size}).Warn("uploaded object size mismatch")
		return Result{Err: fmt.Errorf("uploaded size mismatch: expected %d bytes, got %d", req.File.Size, info.Size)}
	}

	log.WithField("etag", info.ETag).Info("upload finished")
	return Result{StatusCode: http.StatusOK}
}

// progressSink receives every chunk minio reads from the source.
type progressSink struct {
	loaded int64
	total  int64
	report func(Progress)
}

func (s *progressSink) Read(p []byte) (int, error) {
	// Multipart uploads read parts on parallel workers.
	loaded := atomic.AddInt64(&s.loaded, int64(len(p)))
	s.report(Progress{Loaded: loaded, Total: s.total, LengthComputable: s.total > 0})
	return len(p), nil
}

// sanitizeKey turns a file name into a safe object key.
func sanitizeKey(name string) string {
	// First, replace any backslashes with forward slashes
	name = strings.ReplaceAll(name, "\\", "/")

	// Only the base name is kept
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		switch r {
		case '\u3000': // full-width space
			return ' '
		case '\u200B', '\uFEFF': // zero-width space and BOM
			return -1
		default:
			return r
		}
	}, name)

	// Replace problematic characters
	name = strings.ReplaceAll(name, "&", "and")
	name = strings.ReplaceAll(name, "+", "plus")
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return "unnamed.pdf"
	}
	return name
}
