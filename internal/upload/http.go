package upload

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chmdznr/pdfup/pkg/utils"
)

// HTTPConfig holds configuration for the HTTP uploader
type HTTPConfig struct {
	Endpoint string        // base URL, e.g. http://localhost:8000
	Timeout  time.Duration // 0 means no timeout
}

// HTTPUploader posts files as multipart/form-data.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
	log      logrus.FieldLogger
}

// NewHTTPUploader creates an uploader for the given endpoint.
func NewHTTPUploader(cfg HTTPConfig, log logrus.FieldLogger) (*HTTPUploader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, fmt.Errorf("endpoint %q must start with http:// or https://", cfg.Endpoint)
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
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

	return &HTTPUploader{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Transport: tr, Timeout: cfg.Timeout},
		log:      log,
	}, nil
}

// Start begins the upload in the background.
func (u *HTTPUploader) Start(ctx context.Context, req Request) *Task {
	return NewTask(ctx, func(ctx context.Context, report func(Progress)) Result {
		return u.post(ctx, req, report)
	})
}

func (u *HTTPUploader) post(ctx context.Context, req Request, report func(Progress)) Result {
	log := u.log.WithFields(logrus.Fields{"upload_id": req.ID, "file": req.File.Name})

	f, err := os.Open(req.File.Path)
	if err != nil {
		log.WithError(err).Error("failed to open file")
		return Result{Err: fmt.Errorf("failed to open file %s: %w", req.File.Path, err)}
	}
	defer f.Close()

	prefix, suffix, contentType, err := multipartFrame(req.Field, req.File.Name, req.File.MimeType)
	if err != nil {
		return Result{Err: err}
	}

	var total int64
	if req.File.Size >= 0 {
		total = int64(len(prefix)) + req.File.Size + int64(len(suffix))
	}

	body := &progressReader{
		r:      io.MultiReader(bytes.NewReader(prefix), f, bytes.NewReader(suffix)),
		total:  total,
		report: report,
	}

	url := u.endpoint + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	if total > 0 {
		httpReq.ContentLength = total
	} else {
		httpReq.ContentLength = -1
	}

	log.WithFields(logrus.Fields{"url": url, "bytes": total}).Debug("posting file")
	start := time.Now()

	resp, err := u.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Warn("upload failed before a response was received")
		return Result{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": utils.FormatDuration(time.Since(start)),
	}).Info("upload finished")

	return Result{StatusCode: resp.StatusCode}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartFrame returns the bytes that go before and after the file contents
// in a single-part multipart body, so the full length is known up front.
func multipartFrame(field, fileName, mimeType string) (prefix, suffix []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(fileName)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)

	if _, err := mw.CreatePart(h); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write multipart header: %w", err)
	}
	n := buf.Len()
	if err := mw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write multipart trailer: %w", err)
	}

	all := buf.Bytes()
	prefix = append([]byte(nil), all[:n]...)
	suffix = append([]byte(nil), all[n:]...)
	return prefix, suffix, mw.FormDataContentType(), nil
}
