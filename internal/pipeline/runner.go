package pipeline

import (
	"context"
	"database/sql"
	"time"

	"starlift/internal/checksum"
	"starlift/internal/gateway"
	"starlift/internal/load"
	"starlift/internal/observability"
	"starlift/internal/stage"
	"starlift/internal/transform"
	"starlift/pkg/errors"
)

// Run statuses recorded in the warehouse run log.
const (
	StatusSuccess  = "SUCCESS"
	StatusNoChange = "NO_CHANGE"
	StatusFailed   = "FAILED"
)

// Extractor pulls a full snapshot from the source gateway.
type Extractor interface {
	FetchSnapshot(ctx context.Context) (*gateway.Snapshot, error)
}

// Warehouse is the subset of warehouse operations the runner needs.
type Warehouse interface {
	EnsureSchema(ctx context.Context) error
	BeginTx(ctx context.Context) (*sql.Tx, error)
	DB() *sql.DB
}

// Options control a single pipeline run.
type Options struct {
	// Force runs the load phases even when no entity checksum changed.
	Force bool

	// InitSchema applies the warehouse DDL before loading.
	InitSchema bool

	// DryRun stops after extraction and checksum comparison. Nothing is
	// written to the warehouse or the checksum store.
	DryRun bool
}

// Result summarizes one pipeline run.
type Result struct {
	RunID           string
	Status          string
	StartedAt       time.Time
	EndedAt         time.Time
	ChangedEntities []string
	ExtractCounts   map[string]int
	StageCounts     map[string]int
	NormalizeCounts map[string]int
	Quality         *transform.QualityReport
	Dimensions      *transform.ConformResult
	GeneratedDims   *load.DimensionResult
	Facts           *load.FactResult

	// ChecksumSaveError is set when the run succeeded but the new checksums
	// could not be persisted, meaning the next run will reload everything.
	ChecksumSaveError error
}

// Runner orchestrates a full pipeline execution: extract, change gate,
// stage, transform, load, run log. Each warehouse phase runs in its own
// transaction, so a failure mid-phase rolls that phase back while earlier
// committed phases stand.
type Runner struct {
	extractor Extractor
	warehouse Warehouse
	checksums checksum.Store
	logger    *observability.Logger

	stager     *stage.Stager
	normalizer *transform.Normalizer
	quality    *transform.QualityGate
	conformer  *transform.Conformer
	dims       *load.DimensionLoader
	facts      *load.FactLoader
}

// NewRunner creates a pipeline runner.
func NewRunner(extractor Extractor, warehouse Warehouse, checksums checksum.Store, logger *observability.Logger) *Runner {
	return &Runner{
		extractor:  extractor,
		warehouse:  warehouse,
		checksums:  checksums,
		logger:     logger,
		stager:     stage.NewStager(),
		normalizer: transform.NewNormalizer(),
		quality:    transform.NewQualityGate(),
		conformer:  transform.NewConformer(),
		dims:       load.NewDimensionLoader(),
		facts:      load.NewFactLoader(),
	}
}

// NewRunID derives a run identifier from the given moment.
func NewRunID(t time.Time) string {
	return "run_" + t.UTC().Format("20060102_150405")
}

// Run executes the pipeline once. The returned Result is populated as far as
// the run progressed, even when err is non-nil.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{
		RunID:     NewRunID(time.Now()),
		StartedAt: time.Now().UTC(),
	}
	log := r.logger.WithRunID(result.RunID)

	err := r.run(ctx, opts, result, log)
	result.EndedAt = time.Now().UTC()

	if err != nil {
		result.Status = StatusFailed
		log.Error("Pipeline run failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if !opts.DryRun {
		if logErr := r.appendRunLog(ctx, result, err); logErr != nil {
			log.Warn("Failed to append run log entry", map[string]interface{}{
				"error": logErr.Error(),
			})
		}
	}

	return result, err
}

func (r *Runner) run(ctx context.Context, opts Options, result *Result, log *observability.Logger) error {
	log.Info("Extracting snapshot from gateway")
	snapshot, err := r.extractor.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	result.ExtractCounts = snapshot.Counts()
	log.Info("Extraction complete", map[string]interface{}{
		"counts": result.ExtractCounts,
	})

	previous, err := r.checksums.Load()
	if err != nil {
		return err
	}
	current := checksum.SnapshotHashes(snapshot)
	result.ChangedEntities = checksum.Diff(previous, current)

	if len(result.ChangedEntities) == 0 && !opts.Force {
		result.Status = StatusNoChange
		log.Info("No entity changed since last run, skipping load")
		return nil
	}
	log.Info("Changed entities detected", map[string]interface{}{
		"entities": result.ChangedEntities,
		"forced":   opts.Force,
	})

	if opts.DryRun {
		result.Status = StatusSuccess
		log.Info("Dry run, stopping before warehouse writes")
		return nil
	}

	if opts.InitSchema {
		log.Info("Applying warehouse schema")
		if err := r.warehouse.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if err := r.stagePhase(ctx, snapshot, result, log); err != nil {
		return err
	}
	if err := r.transformPhase(ctx, result, log); err != nil {
		return err
	}
	if err := r.loadPhase(ctx, result, log); err != nil {
		return err
	}

	// The warehouse state is already committed at this point, so a failed
	// checksum save only costs one redundant reload on the next run.
	if err := r.checksums.Save(current); err != nil {
		result.ChecksumSaveError = err
		log.Warn("Failed to persist checksums, next run will reload everything", map[string]interface{}{
			"error": err.Error(),
		})
	}

	result.Status = StatusSuccess
	log.Info("Pipeline run complete", map[string]interface{}{
		"duration": time.Since(result.StartedAt).String(),
	})
	return nil
}

func (r *Runner) stagePhase(ctx context.Context, snapshot *gateway.Snapshot, result *Result, log *observability.Logger) error {
	return r.inTransaction(ctx, func(tx *sql.Tx) error {
		log.Info("Staging raw snapshot")
		counts, err := r.stager.Stage(ctx, tx, snapshot, result.RunID)
		if err != nil {
			return err
		}
		result.StageCounts = counts
		return nil
	})
}

func (r *Runner) transformPhase(ctx context.Context, result *Result, log *observability.Logger) error {
	return r.inTransaction(ctx, func(tx *sql.Tx) error {
		log.Info("Normalizing staged data")
		counts, err := r.normalizer.Normalize(ctx, tx, result.RunID)
		if err != nil {
			return err
		}
		result.NormalizeCounts = counts

		report, err := r.quality.Run(ctx, tx)
		if err != nil {
			return err
		}
		result.Quality = report
		if len(report.CustomerDuplicates) > 0 || len(report.ProductDuplicates) > 0 {
			log.Warn("Duplicate groups detected in clean staging", map[string]interface{}{
				"customer_groups": len(report.CustomerDuplicates),
				"product_groups":  len(report.ProductDuplicates),
			})
		}
		if report.InvalidOrderDatesRemoved > 0 {
			log.Warn("Removed orders shipping before their order date", map[string]interface{}{
				"removed": report.InvalidOrderDatesRemoved,
			})
		}

		log.Info("Conforming dimensions")
		conformed, err := r.conformer.Conform(ctx, tx)
		if err != nil {
			return err
		}
		result.Dimensions = conformed
		return nil
	})
}

func (r *Runner) loadPhase(ctx context.Context, result *Result, log *observability.Logger) error {
	return r.inTransaction(ctx, func(tx *sql.Tx) error {
		log.Info("Loading generated dimensions")
		dims, err := r.dims.Load(ctx, tx)
		if err != nil {
			return err
		}
		result.GeneratedDims = dims

		log.Info("Loading facts")
		facts, err := r.facts.Load(ctx, tx, result.RunID)
		if err != nil {
			return err
		}
		result.Facts = facts
		return nil
	})
}

func (r *Runner) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.warehouse.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit pipeline phase")
	}
	return nil
}

const appendRunLogSQL = `INSERT INTO dwh.etl_run_log (run_id, started_at, ended_at, status, error_message)
VALUES ($1, $2, $3, $4, $5)`

// appendRunLog records the run outcome. It writes outside the phase
// transactions so a FAILED row survives the rollback of the failing phase.
func (r *Runner) appendRunLog(ctx context.Context, result *Result, runErr error) error {
	db := r.warehouse.DB()
	if db == nil {
		return errors.New(errors.ErrCodeConnectionFailed, "No warehouse connection for run log")
	}

	var message interface{}
	if runErr != nil {
		message = runErr.Error()
	}

	_, err := db.ExecContext(ctx, appendRunLogSQL,
		result.RunID, result.StartedAt, result.EndedAt, result.Status, message)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to insert run log entry")
	}
	return nil
}
