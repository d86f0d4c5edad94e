package importer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/BartekS5/salesimport/pkg/models"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesimport_rows_total",
		Help: "Import rows by flow and outcome.",
	}, []string{"flow", "outcome"})

	importEntitiesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesimport_entities_created_total",
		Help: "Entities created by imports, by kind.",
	}, []string{"kind"})

	importUndo = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesimport_undo_total",
		Help: "Undo attempts by outcome.",
	}, []string{"outcome"})
)

func observe(flow string, res *models.ImportResult) {
	importRows.WithLabelValues(flow, "processed").Add(float64(res.ProcessedRows))
	importRows.WithLabelValues(flow, "failed").Add(float64(res.FailedRows))
	importRows.WithLabelValues(flow, "skipped").Add(float64(res.SkippedRows))
	importEntitiesCreated.WithLabelValues("contract").Add(float64(len(res.CreatedContracts)))
	importEntitiesCreated.WithLabelValues("user").Add(float64(len(res.CreatedUsers)))
	importEntitiesCreated.WithLabelValues("group").Add(float64(len(res.CreatedGroups)))
	importEntitiesCreated.WithLabelValues("pv").Add(float64(len(res.CreatedPVs)))
}

// WriteMetrics writes the collected metrics to path in the text exposition
// format, for the node_exporter textfile collector.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, g), "write metrics to %s", path)
}

// PushMetrics replaces the metrics of job on the Pushgateway at url.
func PushMetrics(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	err := push.New(url, job).Gatherer(g).PushContext(ctx)
	return errors.Wrapf(err, "push metrics to %s", url)
}
