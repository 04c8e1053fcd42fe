package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/logging"
)

// DumpMetrics represents the statistics of the last dump run exported as
// Prometheus metrics.
type DumpMetrics struct {
	Hostname      string
	ServerFlavor  string
	ServerVersion string
	ToolVersion   string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	ExitCode     int
	ErrorCount   int
	WarningCount int

	DumpSize           int64
	Encrypted          bool
	ManagedDumps       int
	RemovedByRetention int
}

// PrometheusExporter writes dump metrics in Prometheus textfile format for
// node_exporter.
type PrometheusExporter struct {
	textfileDir string
	logger      *logging.Logger
}

// NewPrometheusExporter creates a new PrometheusExporter using the provided directory.
func NewPrometheusExporter(textfileDir string, logger *logging.Logger) *PrometheusExporter {
	return &PrometheusExporter{
		textfileDir: strings.TrimRight(textfileDir, "/"),
		logger:      logger,
	}
}

// Export writes the given metrics snapshot to mysqlkeeper_dump.prom in
// textfileDir. The file is written to a temp path and renamed so the
// node_exporter textfile collector never reads a partial file.
func (pe *PrometheusExporter) Export(m *DumpMetrics) error {
	if pe == nil || m == nil {
		return nil
	}

	if pe.textfileDir == "" {
		return fmt.Errorf("metrics textfile directory is empty")
	}

	if err := os.MkdirAll(pe.textfileDir, 0o755); err != nil {
		return fmt.Errorf("create metrics directory %s: %w", pe.textfileDir, err)
	}

	tmpPath := filepath.Join(pe.textfileDir, "mysqlkeeper_dump.prom.tmp")
	finalPath := filepath.Join(pe.textfileDir, "mysqlkeeper_dump.prom")

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create metrics file %s: %w", tmpPath, err)
	}
	defer f.Close()

	// Helper to write a single metric with HELP/TYPE
	writeMetric := func(name, mtype, help, value string) {
		fmt.Fprintf(f, "# HELP %s %s\n", name, help)
		fmt.Fprintf(f, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintln(f, value)
	}

	// Timestamps
	startTs := float64(m.StartTime.Unix())
	endTs := float64(m.EndTime.Unix())
	if m.EndTime.IsZero() && !m.StartTime.IsZero() {
		endTs = float64(m.StartTime.Unix() + int64(m.Duration.Seconds()))
	}

	// Status gauge: 0=success, 1=warning, 2=error
	status := 0
	if m.ExitCode != 0 {
		status = 2
	} else if m.WarningCount > 0 {
		status = 1
	}

	encrypted := 0
	if m.Encrypted {
		encrypted = 1
	}

	writeMetric(
		"mysqlkeeper_dump_start_time_seconds",
		"gauge",
		"Unix timestamp of dump start",
		fmt.Sprintf("mysqlkeeper_dump_start_time_seconds %.0f", startTs),
	)

	writeMetric(
		"mysqlkeeper_dump_end_time_seconds",
		"gauge",
		"Unix timestamp of dump end",
		fmt.Sprintf("mysqlkeeper_dump_end_time_seconds %.0f", endTs),
	)

	writeMetric(
		"mysqlkeeper_dump_duration_seconds",
		"gauge",
		"Duration of last dump in seconds",
		fmt.Sprintf("mysqlkeeper_dump_duration_seconds %.2f", m.Duration.Seconds()),
	)

	writeMetric(
		"mysqlkeeper_dump_exit_code",
		"gauge",
		"Exit code of last dump",
		fmt.Sprintf("mysqlkeeper_dump_exit_code %d", m.ExitCode),
	)

	writeMetric(
		"mysqlkeeper_dump_status",
		"gauge",
		"Status of last dump (0=success,1=warning,2=error)",
		fmt.Sprintf("mysqlkeeper_dump_status %d", status),
	)

	writeMetric(
		"mysqlkeeper_dump_errors_total",
		"gauge",
		"Total number of errors in last dump",
		fmt.Sprintf("mysqlkeeper_dump_errors_total %d", m.ErrorCount),
	)

	writeMetric(
		"mysqlkeeper_dump_warnings_total",
		"gauge",
		"Total number of warnings in last dump",
		fmt.Sprintf("mysqlkeeper_dump_warnings_total %d", m.WarningCount),
	)

	writeMetric(
		"mysqlkeeper_dump_size_bytes",
		"gauge",
		"Size of last dump file in bytes",
		fmt.Sprintf("mysqlkeeper_dump_size_bytes %d", m.DumpSize),
	)

	writeMetric(
		"mysqlkeeper_dump_encrypted",
		"gauge",
		"Whether the last dump was encrypted (0=plain,1=age)",
		fmt.Sprintf("mysqlkeeper_dump_encrypted %d", encrypted),
	)

	writeMetric(
		"mysqlkeeper_dump_managed_total",
		"gauge",
		"Number of dumps currently retained in the managed shared folder",
		fmt.Sprintf("mysqlkeeper_dump_managed_total %d", m.ManagedDumps),
	)

	writeMetric(
		"mysqlkeeper_dump_retention_removed_total",
		"gauge",
		"Dumps removed by the retention policy during the last run",
		fmt.Sprintf("mysqlkeeper_dump_retention_removed_total %d", m.RemovedByRetention),
	)

	// Static info metric with labels
	fmt.Fprintf(f, "# HELP mysqlkeeper_dump_info Static information about this dump instance\n")
	fmt.Fprintf(f, "# TYPE mysqlkeeper_dump_info gauge\n")
	fmt.Fprintf(
		f,
		"mysqlkeeper_dump_info{hostname=%q,server_flavor=%q,server_version=%q,tool_version=%q} 1\n",
		m.Hostname,
		m.ServerFlavor,
		m.ServerVersion,
		m.ToolVersion,
	)

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync metrics file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename metrics file to %s: %w", finalPath, err)
	}

	if pe.logger != nil {
		pe.logger.Debug("Prometheus metrics exported to %s", finalPath)
	}

	return nil
}
