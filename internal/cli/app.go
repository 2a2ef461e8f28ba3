// Package cli is the interactive front end: a menu to train the models or
// score a patient typed in at the prompt.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/uemura/appendicitis/internal/config"
	"github.com/uemura/appendicitis/internal/dataset"
	"github.com/uemura/appendicitis/internal/inference"
	"github.com/uemura/appendicitis/internal/pipeline"
	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/internal/store"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
)

const menu = `====================================
 >> Pediatric Uemura's Diagnosis <<
 [1] Train models
 [2] Run inference
 [0] Exit
====================================
`

// App runs commands against one configuration.
type App struct {
	cfg    *config.Config
	prompt *Prompter
	out    io.Writer
	logger log.Logger
}

// New returns an App reading answers from in and writing to out.
func New(cfg *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		cfg:    cfg,
		prompt: NewPrompter(in, out),
		out:    out,
		logger: log.GetLogger().With(log.ComponentKey, "cli"),
	}
}

// Run creates the data and models directories, then executes the configured
// command or, without one, the interactive menu.
func (a *App) Run(ctx context.Context) error {
	for _, dir := range []string{a.cfg.Paths.DataDir, a.cfg.Paths.ModelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}
	switch a.cfg.Command {
	case "train":
		return a.Train(ctx)
	case "infer":
		return a.Infer(ctx)
	case "check":
		return a.Check()
	}
	return a.Menu(ctx)
}

// Menu loops until the user exits or input ends. Failed commands are
// reported and the menu is shown again.
func (a *App) Menu(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(a.out, menu)
		answer, err := a.prompt.Ask("Choose an option: ")
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		opt, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintln(a.out, "Please enter a valid number")
			continue
		}
		switch opt {
		case 1:
			err = a.Train(ctx)
		case 2:
			err = a.Infer(ctx)
		case 0:
			fmt.Fprintln(a.out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid option, try again")
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			fmt.Fprintf(a.out, "ERROR: %v\n", err)
		}
	}
}

// Train loads the dataset and runs the training pipeline.
func (a *App) Train(ctx context.Context) error {
	fmt.Fprintln(a.out, "Starting training pipeline...")
	raw, err := a.loadDataset()
	if err != nil {
		return err
	}
	s, err := store.New(a.cfg.Paths.ModelsDir)
	if err != nil {
		return err
	}

	p := pipeline.New(s)
	tc := a.cfg.Training
	p.Balancer.KNeighbors = tc.SMOTEK
	p.Balancer.RandomState = tc.RandomState
	p.Trainer.RandomState = tc.RandomState
	p.Trainer.SearchFolds = tc.SearchFolds
	p.Trainer.ReportFolds = tc.ReportFolds
	p.Trainer.NJobs = tc.NJobs
	if tc.Quick {
		p.Trainer.Grid = pipeline.QuickGrid()
	}

	rep, err := p.Run(ctx, raw)
	if err != nil {
		a.logger.Error("Training failed", err)
		return err
	}
	for _, o := range rep.Outcomes {
		b := o.Bundle
		fmt.Fprintf(a.out, "> %s: best accuracy %.4f, cv accuracy %.4f, f1_macro %.4f, params %v\n",
			b.Target, b.BestScore, b.Diagnostics["accuracy"], b.Diagnostics["f1_macro"], o.Search.BestParams)
	}
	fmt.Fprintf(a.out, "> Training finished (run %s)\n", rep.RunID)
	return nil
}

func (a *App) loadDataset() (*dataset.Frame, error) {
	if n := a.cfg.Training.SyntheticRows; n > 0 {
		a.logger.Warn("Training on generated data", log.SamplesKey, n)
		return dataset.Synthetic(n, a.cfg.Training.RandomState, 0.05), nil
	}
	return dataset.Load(a.cfg.Paths.Dataset, schema.NumericColumns)
}

// Infer asks for one patient and scores it.
func (a *App) Infer(ctx context.Context) error {
	s, err := store.New(a.cfg.Paths.ModelsDir)
	if err != nil {
		return err
	}
	c := inference.LoadContext(s)
	if !c.Available() {
		return errors.WithHint(errors.WithStack(errors.ErrScalerUnavailable), "train the models first")
	}

	record, err := a.prompt.Record()
	if err != nil {
		return err
	}
	res, err := inference.NewRunner(s, a.cfg.ResultsPath()).Infer(ctx, c, record)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "\n> RESULTS <")
	for _, p := range res.Predictions {
		fmt.Fprintf(a.out, "%s: %s (p=%.3f)\n", p.Target, p.Label, p.Probability)
	}
	fmt.Fprintf(a.out, "\n> Inference saved to '%s' <\n", a.cfg.ResultsPath())
	return nil
}

// Check prints the persisted scaler and the model cards.
func (a *App) Check() error {
	s, err := store.New(a.cfg.Paths.ModelsDir)
	if err != nil {
		return err
	}
	scaler, err := s.LoadScaler()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Feature names in scaler:")
	fmt.Fprintln(a.out, scaler.FeatureNames)
	fmt.Fprintf(a.out, "\nScaler: %s\nParameters: %v\n", scaler, scaler.GetParams())

	for _, target := range schema.Targets {
		card, err := s.LoadCard(target.Name)
		if err != nil {
			fmt.Fprintf(a.out, "\n%s: no model (%v)\n", target.Column, err)
			continue
		}
		fmt.Fprintf(a.out, "\n%s: run %s, %d samples, classes %v, positive %q, accuracy %.4f\n",
			target.Column, card.RunID, card.Samples, card.Classes, card.PositiveLabel, card.Diagnostics["accuracy"])
		fmt.Fprintf(a.out, "Out-of-fold confusion (rows true, columns predicted): %v, error %.4f\n", card.Confusion, card.OOFError)
	}
	return nil
}
