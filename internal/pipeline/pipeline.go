package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/uemura/appendicitis/internal/dataset"
	"github.com/uemura/appendicitis/internal/report"
	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/internal/store"
	"github.com/uemura/appendicitis/internal/telemetry"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
)

// Pipeline trains every target in order.
type Pipeline struct {
	Preprocessor *Preprocessor
	Balancer     *Balancer
	Trainer      *Trainer
	Metrics      *telemetry.TrainingMetrics

	// Charts enables the feature-importance PNG per target.
	Charts bool

	store  *store.Store
	logger log.Logger
}

// New wires a pipeline around one artifact store.
func New(s *store.Store) *Pipeline {
	return &Pipeline{
		Preprocessor: NewPreprocessor(s),
		Balancer:     NewBalancer(5, 42),
		Trainer:      NewTrainer(s),
		Metrics:      telemetry.NewTrainingMetrics(),
		Charts:       true,
		store:        s,
		logger:       log.GetLogger().With(log.ComponentKey, "pipeline", log.PhaseKey, log.PhaseTraining),
	}
}

// Report summarises a training run.
type Report struct {
	RunID    string
	Outcomes []*Outcome
	Duration time.Duration
}

// Run cleans and normalises raw, then balances and trains Diagnosis,
// Severity and Management. Severity and Management only see the rows
// diagnosed with appendicitis. Any failure stops the run.
func (p *Pipeline) Run(ctx context.Context, raw *dataset.Frame) (*Report, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(log.RunIDKey, runID)
	logger.Info("Training started", log.SamplesKey, raw.Len())

	clean, err := p.Preprocessor.Clean(raw)
	if err != nil {
		return nil, errors.Wrap(err, "clean dataset")
	}
	encoded, err := p.Preprocessor.Normalize(clean)
	if err != nil {
		return nil, errors.Wrap(err, "normalise dataset")
	}

	rep := &Report{RunID: runID}
	for _, target := range schema.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		targetStarted := time.Now()

		data := encoded
		if target.AppendicitisOnly {
			diagnosis := encoded.Targets[schema.Diagnosis]
			data = encoded.Subset(func(i int) bool { return diagnosis[i] == schema.Targets[0].Positive })
		}
		p.Metrics.ObserveSamples(target.Column, "raw", data.Len())

		balanced, err := p.Balancer.Balance(data, target.Column)
		if err != nil {
			return nil, err
		}
		p.Metrics.ObserveSamples(target.Column, "balanced", balanced.Len())

		outcome, err := p.Trainer.Train(ctx, balanced, target, runID)
		if err != nil {
			return nil, err
		}
		p.Metrics.ObserveSearch(target.Column, outcome.Bundle.BestScore)
		p.Metrics.ObserveDiagnostics(target.Column, outcome.Bundle.Diagnostics)
		p.Metrics.ObserveDuration(target.Column, time.Since(targetStarted))

		if p.Charts {
			path := p.store.Path("importance_" + target.Name + ".png")
			if err := report.ImportanceChart(target.Column, outcome.Bundle.TopFeatures(15), path); err != nil {
				logger.Warn("Importance chart not written", log.TargetKey, target.Column, log.PathKey, path, "err", err)
			}
		}
		rep.Outcomes = append(rep.Outcomes, outcome)
	}

	rep.Duration = time.Since(started)
	if err := p.Metrics.Finish(runID, time.Now(), p.store.Path(store.TelemetryFile)); err != nil {
		logger.Warn("Telemetry not written", "err", err)
	}
	logger.Info("Training finished", log.DurationMsKey, rep.Duration.Milliseconds())
	return rep, nil
}
