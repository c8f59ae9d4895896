package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/precountlive/precount/internal/logger"
	"github.com/precountlive/precount/internal/projection"
	"github.com/precountlive/precount/internal/record"
	"github.com/precountlive/precount/internal/storage"
	"github.com/precountlive/precount/internal/table"
)

// Metric names recorded for every run.
const (
	MetricRowsDecoded    = "rows.decoded"
	MetricRowsSkipped    = "rows.skipped"
	MetricRegions        = "regions"
	MetricRegionsSkipped = "regions.skipped"
	MetricStoreFailures  = "store.failures"
	MetricCompletion     = "completion_ratio"
)

// Options configure a run. Store may be nil, in which case nothing is published.
type Options struct {
	Layout table.Layout
	Store  storage.Store
	Keys   storage.Keys
	Logger *logger.Logger
}

// Report describes the outcome of a run.
type Report struct {
	RunID         string
	Set           *record.Set
	Result        *projection.Result
	ProjectionErr error
	Published     bool
	Metrics       logger.Snapshot
}

// Run decodes html and carries the result through to the store. The report
// is returned even when publishing fails, together with the publish error.
func Run(ctx context.Context, html string, opts Options) (*Report, error) {
	runID := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Fields{"run_id": runID})
	metrics := logger.NewMetrics()

	report := &Report{RunID: runID}
	defer func() { report.Metrics = metrics.GetSnapshot() }()

	start := time.Now()
	decoded, err := table.Decode(html, opts.Layout)
	if err != nil {
		log.Error("table decode failed", nil, err)
		return nil, err
	}
	metrics.RecordTiming("decode", time.Since(start))

	set := record.Build(decoded)
	report.Set = set

	metrics.AddCounter(MetricRowsDecoded, int64(len(decoded.Rows)))
	metrics.AddCounter(MetricRowsSkipped, int64(len(set.Skipped)))
	metrics.AddCounter(MetricRegions, int64(len(set.Regions)))
	for _, skipped := range set.Skipped {
		log.Warn("row skipped", logger.Fields{
			"row":    skipped.Row,
			"region": skipped.Name,
			"kind":   skipped.Kind,
			"reason": skipped.Reason,
		})
	}
	log.Info("records built", logger.Fields{
		"candidates": len(set.Candidates),
		"regions":    len(set.Regions),
		"skipped":    len(set.Skipped),
	})

	result, err := projection.Project(set.Regions, set.Summary)
	if err != nil {
		var missing *projection.MissingSummaryError
		if !errors.As(err, &missing) {
			return nil, err
		}
		report.ProjectionErr = err
		log.Warn("projection not produced", logger.Fields{"reason": err.Error()})
	} else {
		result.Metadata[projection.MetaRunID] = runID
		report.Result = result

		metrics.AddCounter(MetricRegionsSkipped, int64(len(result.Skipped)))
		metrics.SetGauge(MetricCompletion, result.OverallCompletionRatio)
		for _, skipped := range result.Skipped {
			log.Warn("region excluded from projection", logger.Fields{
				"region": skipped.Region,
				"reason": skipped.Reason,
			})
		}
		log.Info("projection computed", logger.Fields{
			"total_actual_votes": result.TotalActualVotes,
			"reporting":          result.Metadata[projection.MetaRegionsReporting],
		})
	}

	if opts.Store == nil {
		return report, nil
	}

	start = time.Now()
	err = storage.Publish(ctx, opts.Store, opts.Keys, set, report.Result)
	metrics.RecordTiming("publish", time.Since(start))
	if err != nil {
		metrics.AddCounter(MetricStoreFailures, int64(len(unwrapJoined(err))))
		log.Error("publish failed", nil, err)
		return report, fmt.Errorf("publishing run %s: %w", runID, err)
	}

	report.Published = true
	log.Info("run published", logger.Fields{
		"records_key":    opts.Keys.Records,
		"projection_key": opts.Keys.Projection,
	})
	return report, nil
}

// unwrapJoined returns the individual errors of an errors.Join result.
func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
