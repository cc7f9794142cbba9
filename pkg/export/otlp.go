// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package export

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/frametap/frametap/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	_ "google.golang.org/grpc/encoding/gzip" // Register gzip compressor

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
)

// OTLPExporter sends decoded frames as OTLP log records via gRPC with
// automatic reconnection.
type OTLPExporter struct {
	logger      *zap.Logger
	serviceName string
	endpoint    string
	opts        []grpc.DialOption

	mu     sync.RWMutex
	conn   *grpc.ClientConn
	logSvc collogspb.LogsServiceClient
}

// NewOTLPExporter creates a new OTLP gRPC exporter.
func NewOTLPExporter(cfg *config.OTLPConfig, serviceName string, logger *zap.Logger) (*OTLPExporter, error) {
	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(4 * 1024 * 1024)),
	}

	if cfg.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	// Enable gzip compression for gRPC (default: gzip)
	if cfg.Compression == "" || cfg.Compression == "gzip" {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.UseCompressor("gzip")))
	}

	e := &OTLPExporter{
		logger:      logger,
		serviceName: serviceName,
		endpoint:    cfg.Endpoint,
		opts:        opts,
	}

	if err := e.connect(); err != nil {
		return nil, err
	}

	return e, nil
}

// connect establishes or re-establishes the gRPC connection.
func (e *OTLPExporter) connect() error {
	conn, err := grpc.Dial(e.endpoint, e.opts...)
	if err != nil {
		return fmt.Errorf("dial OTLP endpoint %s: %w", e.endpoint, err)
	}

	e.conn = conn
	e.logSvc = collogspb.NewLogsServiceClient(conn)

	return nil
}

// ensureConnected checks connection health and reconnects if needed.
func (e *OTLPExporter) ensureConnected() error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return e.reconnect()
	}

	state := conn.GetState()
	switch state {
	case connectivity.Ready, connectivity.Idle:
		return nil
	case connectivity.TransientFailure, connectivity.Shutdown:
		return e.reconnect()
	case connectivity.Connecting:
		// Let it finish connecting
		return nil
	default:
		return nil
	}
}

// reconnect closes the old connection and creates a new one.
func (e *OTLPExporter) reconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check under write lock
	if e.conn != nil {
		state := e.conn.GetState()
		if state == connectivity.Ready || state == connectivity.Idle {
			return nil
		}
		e.conn.Close()
	}

	e.logger.Info("reconnecting to OTLP endpoint", zap.String("endpoint", e.endpoint))

	if err := e.connect(); err != nil {
		e.logger.Error("reconnect failed", zap.Error(err))
		return err
	}

	e.logger.Info("reconnected to OTLP endpoint")
	return nil
}

// ExportFrames sends decoded frames via OTLP gRPC as log records, one
// ResourceLogs per stream so each tap keeps its own resource attributes.
func (e *OTLPExporter) ExportFrames(ctx context.Context, frames []*FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}

	if err := e.ensureConnected(); err != nil {
		return fmt.Errorf("connection not ready: %w", err)
	}

	req := buildLogsRequest(e.serviceName, frames)

	e.mu.RLock()
	svc := e.logSvc
	e.mu.RUnlock()

	_, err := svc.Export(ctx, req)
	return err
}

// Shutdown closes the gRPC connection.
func (e *OTLPExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// buildLogsRequest groups frames by stream name and converts each group
// into a ResourceLogs. Shared by the gRPC and HTTP exporters.
func buildLogsRequest(serviceName string, frames []*FrameRecord) *collogspb.ExportLogsServiceRequest {
	grouped := make(map[string][]*logspb.LogRecord)
	for _, rec := range frames {
		grouped[rec.Stream] = append(grouped[rec.Stream], convertFrame(rec))
	}

	scope := &commonpb.InstrumentationScope{
		Name:    "frametap",
		Version: "0.1.0",
	}

	resourceLogs := make([]*logspb.ResourceLogs, 0, len(grouped))
	for stream, protoLogs := range grouped {
		resourceLogs = append(resourceLogs, &logspb.ResourceLogs{
			Resource: resourceForStream(serviceName, stream),
			ScopeLogs: []*logspb.ScopeLogs{
				{
					Scope:      scope,
					LogRecords: protoLogs,
				},
			},
		})
	}

	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: resourceLogs,
	}
}

// convertFrame converts a decoded frame into an OTLP log record. The body
// carries the decoded text when the stream produced any, otherwise the raw
// bytes sanitized to valid UTF-8; the exact bytes always ride along in the
// frame.data_hex attribute.
func convertFrame(rec *FrameRecord) *logspb.LogRecord {
	body := rec.Text
	if body == "" {
		body = sanitizeUTF8(string(rec.Data))
	}

	pl := &logspb.LogRecord{
		TimeUnixNano:         uint64(rec.Time.UnixNano()),
		ObservedTimeUnixNano: uint64(time.Now().UnixNano()),
		Body: &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: body},
		},
		SeverityText:   "INFO",
		SeverityNumber: logspb.SeverityNumber_SEVERITY_NUMBER_INFO,
	}

	pl.Attributes = append(pl.Attributes,
		strAttr("stream.name", rec.Stream),
		strAttr("transport.kind", rec.Transport),
		intAttr("frame.size_bytes", int64(len(rec.Data))),
		strAttr("frame.data_hex", hex.EncodeToString(rec.Data)),
	)

	return pl
}

// resourceForStream returns OTEL resource attributes for one tapped stream.
func resourceForStream(serviceName, stream string) *resourcepb.Resource {
	hostname, _ := os.Hostname()
	pid := os.Getpid()

	attrs := []*commonpb.KeyValue{
		strAttr("service.name", serviceName),
		strAttr("service.instance.id", fmt.Sprintf("%s-%d", hostname, pid)),
		strAttr("telemetry.sdk.name", "frametap"),
		strAttr("telemetry.sdk.language", "go"),
		strAttr("telemetry.sdk.version", "0.1.0"),
		strAttr("host.name", hostname),
		strAttr("host.arch", runtime.GOARCH),
		intAttr("process.pid", int64(pid)),
		strAttr("stream.name", stream),
	}

	return &resourcepb.Resource{Attributes: attrs}
}

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func intAttr(key string, value int64) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: value}},
	}
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode replacement
// character. Raw device frames are arbitrary bytes and often not valid UTF-8,
// which would make protobuf marshaling fail.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return string([]rune(s))
}
