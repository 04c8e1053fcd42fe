package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

func TestPrometheusExporterExport(t *testing.T) {
	dir := t.TempDir()
	logger := logging.New(types.LogLevelError, false)
	exporter := NewPrometheusExporter(dir, logger)

	metrics := &DumpMetrics{
		Hostname:           "test-host",
		ServerFlavor:       "mariadb",
		ServerVersion:      "10.11.6",
		ToolVersion:        "0.9.0",
		StartTime:          time.Unix(1000, 0),
		EndTime:            time.Unix(1100, 0),
		Duration:           100 * time.Second,
		ExitCode:           0,
		ErrorCount:         1,
		WarningCount:       2,
		DumpSize:           123456789,
		Encrypted:          true,
		ManagedDumps:       5,
		RemovedByRetention: 3,
	}

	if err := exporter.Export(metrics); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	outputPath := filepath.Join(dir, "mysqlkeeper_dump.prom")
	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read metrics file: %v", err)
	}

	content := string(data)
	for _, expected := range []string{
		"mysqlkeeper_dump_start_time_seconds 1000",
		"mysqlkeeper_dump_end_time_seconds 1100",
		"mysqlkeeper_dump_duration_seconds 100.00",
		"mysqlkeeper_dump_exit_code 0",
		"mysqlkeeper_dump_status 1",
		"mysqlkeeper_dump_errors_total 1",
		"mysqlkeeper_dump_warnings_total 2",
		"mysqlkeeper_dump_size_bytes 123456789",
		"mysqlkeeper_dump_encrypted 1",
		"mysqlkeeper_dump_managed_total 5",
		"mysqlkeeper_dump_retention_removed_total 3",
		"mysqlkeeper_dump_info{hostname=\"test-host\",server_flavor=\"mariadb\",server_version=\"10.11.6\",tool_version=\"0.9.0\"} 1",
	} {
		if !strings.Contains(content, expected) {
			t.Fatalf("metrics output missing %q\n%s", expected, content)
		}
	}
}

func TestPrometheusExporterNilMetrics(t *testing.T) {
	dir := t.TempDir()
	exporter := NewPrometheusExporter(dir, nil)
	if err := exporter.Export(nil); err != nil {
		t.Fatalf("Export(nil) error = %v", err)
	}
}
