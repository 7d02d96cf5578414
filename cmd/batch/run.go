package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"satinel-backend/cmd"
	"satinel-backend/internal/config"
	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type runtime struct {
	cfg      config.Config
	pipeline *core.TaskPipeline
	batches  *core.BatchCoordinator
	close    func()
}

func setup(ctx context.Context) (*runtime, error) {
	cmd.LoadEnvFileFrom(envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logFile := cmd.InitLogging(cfg)

	db := cmd.CreateDatabase(cfg)
	provider := cmd.CreateStorage(ctx, cfg)
	resolver := cmd.CreateResolver(cfg, cmd.CreateAreaRepository(ctx, cfg, db))
	pipeline := cmd.CreatePipeline(cfg, resolver, cmd.CreateImagerySource(cfg, provider), provider)

	return &runtime{
		cfg:      cfg,
		pipeline: pipeline,
		batches:  cmd.CreateBatchCoordinator(cfg, pipeline),
		close:    func() { logFile.Close() },
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readTasks accepts either a JSON array of tasks or an object with a "tasks"
// array, matching the batch request body.
func readTasks(path string) ([]types.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading task file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var tasks []types.Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("invalid task file %s: %w", path, err)
		}
		return tasks, nil
	}

	var wrapped struct {
		Tasks []types.Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid task file %s: %w", path, err)
	}
	return wrapped.Tasks, nil
}

func batchCmd() *cobra.Command {
	batch := &cobra.Command{
		Use:   "batch",
		Short: "Run batches of tasks",
	}

	var quiet bool
	run := &cobra.Command{
		Use:   "run <tasks.json>",
		Short: "Run every task in a file concurrently and print the batch result",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			tasks, err := readTasks(args[0])
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("task file %s contains no tasks", args[0])
			}

			rt, err := setup(c.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			var progress core.ProgressFunc
			if !quiet {
				bar := progressbar.NewOptions(len(tasks),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("running tasks"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(30),
					progressbar.OptionClearOnFinish(),
				)
				progress = func(resp types.TaskResponse) {
					_ = bar.Add(1)
				}
				defer bar.Finish() //nolint:errcheck
			}

			result := rt.batches.RunBatchWithProgress(c.Context(), tasks, progress)
			return writeJSON(c.OutOrStdout(), result)
		},
	}
	run.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")

	batch.AddCommand(run)
	return batch
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Run single tasks",
	}

	var (
		req      types.Task
		lat, lon float64
		source   string
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Run one task and print its response",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			if c.Flags().Changed("lat") {
				req.Lat = &lat
			}
			if c.Flags().Changed("lon") {
				req.Lon = &lon
			}
			req.ImagerySource = types.ImagerySourceMode(source)

			rt, err := setup(c.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			resp, err := rt.pipeline.Run(c.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(c.OutOrStdout(), resp)
		},
	}

	flags := run.Flags()
	flags.StringVar(&req.TaskId, "task-id", "", "task id, derived from area and dates when empty")
	flags.StringVar(&req.AreaId, "area", "", "registered area id")
	flags.Float64Var(&lat, "lat", 0, "latitude to snap to a registered area")
	flags.Float64Var(&lon, "lon", 0, "longitude to snap to a registered area")
	flags.StringVar(&req.Date, "date", "", "target date (YYYY-MM-DD)")
	flags.StringVar(&req.HistoricalDate, "historical-date", "", "historical date (YYYY-MM-DD), enables change detection")
	flags.StringVar(&source, "source", "", "imagery source (static or dynamic)")
	flags.StringVar(&req.Prompt, "prompt", "", "detection prompt")
	_ = run.MarkFlagRequired("date")

	task.AddCommand(run)
	return task
}
