package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

const (
	ToolName = "pagemapper"
	// DocumentVersion is bumped whenever the hand-off layout changes incompatibly.
	DocumentVersion = "1"
)

// Reporter collects scan results and writes them as one renderer hand-off
// document.
type Reporter interface {
	// Write adds a single run result to the document.
	Write(result *schemas.ScanResult) error
	// Close writes the document and closes any underlying resources (e.g., file handles).
	Close() error
}

// Document is the renderer hand-off envelope.
type Document struct {
	Tool        string                `json:"tool" yaml:"tool"`
	ToolVersion string                `json:"tool_version" yaml:"tool_version"`
	Version     string                `json:"document_version" yaml:"document_version"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	Results     []*schemas.ScanResult `json:"results" yaml:"results"`
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

type encodeFunc func(w io.Writer, doc *Document) error

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string, logger *zap.Logger) (Reporter, error) {
	var build func(io.WriteCloser, string, *zap.Logger) Reporter
	switch strings.ToLower(format) {
	case "json":
		build = NewJSONReporter
	case "yaml", "yml":
		build = NewYAMLReporter
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return build(writer, toolVersion, logger), nil
}

// documentReporter buffers results until Close. It is safe for concurrent use.
type documentReporter struct {
	writer io.WriteCloser
	encode encodeFunc
	logger *zap.Logger

	mu     sync.Mutex
	doc    *Document
	closed bool
}

// NewJSONReporter writes an indented JSON document. It takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) Reporter {
	return newDocumentReporter(writer, encodeJSON, toolVersion, logger)
}

// NewYAMLReporter writes a YAML document. It takes ownership of writer.
func NewYAMLReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) Reporter {
	return newDocumentReporter(writer, encodeYAML, toolVersion, logger)
}

func newDocumentReporter(writer io.WriteCloser, encode encodeFunc, toolVersion string, logger *zap.Logger) *documentReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentReporter{
		writer: writer,
		encode: encode,
		logger: logger.Named("reporter"),
		doc: &Document{
			Tool:        ToolName,
			ToolVersion: toolVersion,
			Version:     DocumentVersion,
			Results:     []*schemas.ScanResult{},
		},
	}
}

func (r *documentReporter) Write(result *schemas.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot report a nil result")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("reporter is closed")
	}
	r.doc.Results = append(r.doc.Results, result)
	r.logger.Debug("Result buffered",
		zap.String("run_id", result.Metadata.RunID),
		zap.String("status", string(result.Status)),
	)
	return nil
}

func (r *documentReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	r.doc.GeneratedAt = time.Now().UTC()
	encodeErr := r.encode(r.writer, r.doc)
	closeErr := r.writer.Close()
	if encodeErr != nil {
		return fmt.Errorf("failed to write report: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close report output: %w", closeErr)
	}
	r.logger.Debug("Report written", zap.Int("results", len(r.doc.Results)))
	return nil
}
