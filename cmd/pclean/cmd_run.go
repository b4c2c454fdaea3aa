package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pclean-go/pclean/internal/gibbs"
	"github.com/pclean-go/pclean/internal/persist"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/schema"
)

var (
	runSchemaPath       string
	runObservationsPath string
	runOutputPath       string
	runSeed             int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a schema and observations, run the Gibbs driver, persist the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun()
	},
}

func init() {
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "", "schema document path (required)")
	runCmd.Flags().StringVar(&runObservationsPath, "observations", "", "observation CSV path (required)")
	runCmd.Flags().StringVar(&runOutputPath, "output", "", "cluster dump output path (defaults to config's persist.path)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "PRNG seed")
	runCmd.MarkFlagRequired("schema")
	runCmd.MarkFlagRequired("observations")
	rootCmd.AddCommand(runCmd)
}

func runRun() error {
	log := rootLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	doc, err := schema.Load(runSchemaPath)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}

	model, err := buildModel(doc)
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}

	obsList, err := loadObservations(runObservationsPath, model.ValueKindOf)
	if err != nil {
		return fmt.Errorf("loading observations: %w", err)
	}

	s := prng.New(runSeed)
	if err := incorporate(model.Hirm, s, obsList); err != nil {
		return fmt.Errorf("incorporating observations: %w", err)
	}
	log.Info("incorporated observations", "count", len(obsList))

	driverCfg := gibbs.Config{
		MaxIterations:          cfg.Driver.MaxIterations,
		TimeoutSeconds:         cfg.Driver.TimeoutSeconds,
		Verbose:                cfg.Driver.Verbose,
		HyperparameterSubsteps: cfg.Driver.HyperparameterSubsteps,
	}
	driver := gibbs.NewDriver(model.Hirm, nil, driverCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	reason, err := driver.Run(ctx, s)
	if err != nil {
		return fmt.Errorf("gibbs driver: %w", err)
	}
	log.Info("gibbs driver finished", "reason", reason, "score", model.Hirm.LogpScore())

	outputPath := runOutputPath
	if outputPath == "" {
		outputPath = cfg.Persist.Path
	}
	if outputPath == "" {
		return nil
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", outputPath, err)
	}
	defer f.Close()

	dump := persist.Dump(model.Hirm)
	if _, err := dump.WriteTo(f); err != nil {
		return fmt.Errorf("writing cluster dump: %w", err)
	}
	log.Info("wrote cluster dump", "path", outputPath)
	return nil
}
