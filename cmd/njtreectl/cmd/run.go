package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/panjo/njtree/internal/repository"
	"github.com/panjo/njtree/internal/runner"
	"github.com/panjo/njtree/internal/storage"
	"github.com/panjo/njtree/pkg/compression"
	"github.com/panjo/njtree/pkg/config"
	"github.com/panjo/njtree/pkg/parallel"
	"github.com/panjo/njtree/pkg/telemetry"
	"github.com/panjo/njtree/pkg/writer"
)

var (
	runInput      string
	runOutput     string
	runProcesses  int
	runLengths    bool
	runConfigPath string
	runUpload     bool
	runPersist    bool
	runOTEL       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute a Neighbor-Joining tree from a distance matrix",
	Long: `run loads a distance matrix, distributes the join across the configured
number of logical ranks, and prints the resulting tree. It can additionally
persist the run to a database and upload the tree and benchmark artifact to
object storage.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input distance matrix path (required)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output path (default: stdout)")
	runCmd.Flags().IntVarP(&runProcesses, "processes", "p", 0, "number of logical ranks (default: GOMAXPROCS)")
	runCmd.Flags().BoolVar(&runLengths, "lengths", false, "emit :length branch-length annotations")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to a YAML config file")
	runCmd.Flags().BoolVar(&runUpload, "upload", false, "upload the tree and benchmark JSON to configured storage")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "persist the run to the configured database")
	runCmd.Flags().BoolVar(&runOTEL, "otel", false, "enable OpenTelemetry tracing for this run")

	_ = runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runOTEL {
		shutdown, err := telemetry.Init(ctx)
		if err != nil {
			return fmt.Errorf("failed to init telemetry: %w", err)
		}
		defer shutdown(ctx)
	}

	processes := runProcesses
	if processes <= 0 {
		processes = cfg.Engine.Processes
	}

	pool := parallel.DefaultPoolConfig()
	if cfg.Parallel.Workers > 0 {
		pool = pool.WithWorkers(cfg.Parallel.Workers)
	}

	result, err := runner.Run(ctx, runner.Options{
		InputPath:   runInput,
		Processes:   processes,
		EmitLengths: runLengths || cfg.Engine.EmitLengths,
		Pool:        pool,
		Logger:      GetLogger(),
	})
	if err != nil {
		return err
	}

	if err := printRunResult(result); err != nil {
		return err
	}

	runUUID := uuid.NewString()

	if runPersist {
		if err := persistRun(ctx, cfg, runUUID, result); err != nil {
			return fmt.Errorf("failed to persist run: %w", err)
		}
	}

	if runUpload {
		if err := uploadRun(ctx, cfg, runUUID, result); err != nil {
			return fmt.Errorf("failed to upload run: %w", err)
		}
	}

	return nil
}

func printRunResult(result *runner.BenchmarkResult) error {
	var out *os.File
	if runOutput == "" {
		fmt.Fprintln(os.Stderr, "njtreectl: no -o/-output given, writing to stdout")
		out = os.Stdout
	} else {
		f, err := os.Create(runOutput)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		defer f.Close()
		out = f
	}

	fmt.Fprintf(out, "TreeScore: %g\n", result.TreeScore)
	fmt.Fprintf(out, "total_seconds: %g\n", result.TotalSeconds)
	fmt.Fprintf(out, "mpi_seconds: %g\n", result.MPISeconds)
	fmt.Fprintf(out, "Benchmark Output: %d, %d, %g, %g\n", result.N, result.P, result.TotalSeconds, result.MPISeconds)
	fmt.Fprintln(out, "Neighbor-Joining Tree:")
	fmt.Fprintln(out, result.Newick)

	return nil
}

func persistRun(ctx context.Context, cfg *config.Config, runUUID string, result *runner.BenchmarkResult) error {
	db, err := repository.NewGormDB(&repository.DBConfig{
		Type:     cfg.Database.Type,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return err
	}

	repos := repository.NewRepositories(db, cfg.Database.Type)
	defer repos.Close()

	return repos.Run.Save(ctx, &repository.RunRecord{
		UUID:         runUUID,
		N:            result.N,
		P:            result.P,
		TreeScore:    result.TreeScore,
		TotalSeconds: result.TotalSeconds,
		MPISeconds:   result.MPISeconds,
		Newick:       result.Newick,
	})
}

// artifactWriter marshals data to JSON and compresses it with the
// configured Compressor before the result is handed to object storage.
func artifactWriter(data any, path string, comp compression.Compressor) error {
	plain := writer.NewJSONWriter[any]()
	var buf bytes.Buffer
	if err := plain.Write(data, &buf); err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	compressed, err := comp.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to compress artifact: %w", err)
	}
	return os.WriteFile(path, compressed, 0o644)
}

func uploadRun(ctx context.Context, cfg *config.Config, runUUID string, result *runner.BenchmarkResult) error {
	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}
	if err := cfg.EnsureArtifactDir(); err != nil {
		return err
	}

	comp := compression.Best()
	defer compression.Close(comp)

	artifactPath := fmt.Sprintf("%s/%s-benchmark.json.%s", strings.TrimSuffix(cfg.Engine.ArtifactDir, "/"), runUUID, comp.Name())
	if err := artifactWriter(result, artifactPath, comp); err != nil {
		return fmt.Errorf("failed to write benchmark artifact: %w", err)
	}
	if err := store.UploadFile(ctx, fmt.Sprintf("%s/benchmark.json.%s", runUUID, comp.Name()), artifactPath); err != nil {
		return err
	}

	treeBytes, err := comp.Compress([]byte(result.Newick + "\n"))
	if err != nil {
		return fmt.Errorf("failed to compress tree artifact: %w", err)
	}
	treePath := fmt.Sprintf("%s/%s-tree.nwk.%s", strings.TrimSuffix(cfg.Engine.ArtifactDir, "/"), runUUID, comp.Name())
	if err := os.WriteFile(treePath, treeBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write tree artifact: %w", err)
	}

	return store.UploadFile(ctx, fmt.Sprintf("%s/tree.nwk.%s", runUUID, comp.Name()), treePath)
}
