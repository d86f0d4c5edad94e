package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/salesimport/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDetectCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendas.csv")
	require.NoError(t, os.WriteFile(path, []byte("Contrato;Valor;Data\nC1;1.234,56;31/08/2025\n"), 0o600))

	out, err := execute(t, "detect", path)
	require.NoError(t, err)
	assert.Equal(t, "';'\n", out)
}

func TestDetectCmd_Ambiguous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b;c\n"), 0o600))

	_, err := execute(t, "detect", path)
	assert.Error(t, err)
}

func TestTemplatesCmd(t *testing.T) {
	out, err := execute(t, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "1 Users (User)")
	assert.Contains(t, out, "3 contractDashboard (Contract)")
}

func TestParseDelimiter(t *testing.T) {
	d, err := parseDelimiter(";")
	require.NoError(t, err)
	assert.Equal(t, ';', d)

	d, err = parseDelimiter("")
	require.NoError(t, err)
	assert.Equal(t, rune(0), d)

	_, err = parseDelimiter("|")
	assert.Error(t, err)
}

func TestExportMetrics_Textfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	runs := prometheus.NewCounter(prometheus.CounterOpts{Name: "salesimport_test_runs_total", Help: "Runs."})
	reg.MustRegister(runs)
	runs.Inc()

	path := filepath.Join(t.TempDir(), "salesimport.prom")
	exportMetrics(context.Background(), &config.Config{MetricsTextfile: path, MetricsJob: "salesimport"}, reg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "salesimport_test_runs_total 1")
}

func TestExportMetrics_Disabled(t *testing.T) {
	assert.NotPanics(t, func() {
		exportMetrics(context.Background(), nil, prometheus.NewRegistry())
		exportMetrics(context.Background(), &config.Config{}, prometheus.NewRegistry())
	})
}
