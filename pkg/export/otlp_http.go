// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/frametap/frametap/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// HTTPOTLPExporter sends decoded frames as OTLP log records via
// HTTP/protobuf.
type HTTPOTLPExporter struct {
	logger      *zap.Logger
	serviceName string
	endpoint    string
	compression string
	headers     map[string]string
	client      *http.Client
}

// NewHTTPOTLPExporter creates a new OTLP HTTP exporter.
func NewHTTPOTLPExporter(cfg *config.OTLPConfig, serviceName string, logger *zap.Logger) (*HTTPOTLPExporter, error) {
	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
	}

	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	compression := cfg.Compression
	if compression == "" {
		compression = "gzip"
	}

	return &HTTPOTLPExporter{
		logger:      logger,
		serviceName: serviceName,
		endpoint:    endpoint,
		compression: compression,
		headers:     cfg.Headers,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// ExportFrames sends decoded frames via OTLP HTTP, grouped by stream.
func (e *HTTPOTLPExporter) ExportFrames(ctx context.Context, frames []*FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}

	req := buildLogsRequest(e.serviceName, frames)
	return e.post(ctx, "/v1/logs", req)
}

// post sends a protobuf-encoded request to the OTLP HTTP endpoint.
func (e *HTTPOTLPExporter) post(ctx context.Context, path string, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal protobuf: %w", err)
	}

	var body io.Reader
	body = bytes.NewReader(data)
	contentEncoding := ""

	if e.compression == "gzip" {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return fmt.Errorf("gzip compress: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("gzip close: %w", err)
		}
		body = &buf
		contentEncoding = "gzip"
	}

	url := e.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("OTLP HTTP %s returned %d", path, resp.StatusCode)
}

// Shutdown closes the HTTP client.
func (e *HTTPOTLPExporter) Shutdown(ctx context.Context) error {
	e.client.CloseIdleConnections()
	return nil
}
