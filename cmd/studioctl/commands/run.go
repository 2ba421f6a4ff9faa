package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"studio/internal/app"
	"studio/internal/jobs"
	"studio/internal/providers/voice"
)

// jobOutput is the printed outcome of one job.
type jobOutput struct {
	File       string      `json:"file,omitempty"`
	Result     jobs.Result `json:"result"`
	StorageKey string      `json:"storage_key,omitempty"`
	Error      *jobError   `json:"error,omitempty"`
}

type jobError struct {
	Kind    jobs.Kind `json:"kind"`
	Message string    `json:"message"`
	Detail  any       `json:"detail,omitempty"`
}

func newJobError(err error) *jobError {
	out := &jobError{Kind: jobs.KindOf(err), Message: err.Error()}
	var jerr *jobs.Error
	if errors.As(err, &jerr) {
		out.Detail = jerr.Detail
	}
	return out
}

func newRunCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one job file to completion",
		Example: `  studioctl run --request video.json
  studioctl run -r voice.json --no-storage`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(flagRequest)
			noStorage, _ := cmd.Flags().GetBool(flagNoStorage)

			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			file, err := readJobFile(path)
			if err != nil {
				return err
			}
			job, err := file.resolve(a.Registry)
			if err != nil {
				_ = printJSON(opts.Stdout, jobOutput{File: path, Error: newJobError(err)})
				return err
			}

			res, err := a.Orchestrator.Run(cmd.Context(), job.Adapter, job.Request)
			out := finish(cmd.Context(), a, path, res, err, !noStorage)
			if perr := printJSON(opts.Stdout, out); perr != nil {
				return perr
			}
			if out.Error != nil {
				return fmt.Errorf("job %s: %s", out.Error.Kind, out.Error.Message)
			}
			if res.Status != jobs.StatusSucceeded {
				return fmt.Errorf("job finished with status %s", res.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringP(flagRequest, "r", "", "JSON job file")
	cmd.Flags().Bool(flagNoStorage, false, "Do not persist binary outputs such as audio")
	_ = cmd.MarkFlagRequired(flagRequest)
	return cmd
}

func newBatchCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "batch",
		Short:   "Run several job files concurrently",
		Example: `  studioctl batch -r a.json -r b.json --parallel 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, _ := cmd.Flags().GetStringArray(flagRequest)
			parallel, _ := cmd.Flags().GetInt(flagParallel)
			noStorage, _ := cmd.Flags().GetBool(flagNoStorage)
			if len(paths) == 0 {
				return errors.New("at least one --request is required")
			}

			a, err := buildApp(opts)
			if err != nil {
				return err
			}

			// Files that fail to resolve are reported without running.
			outputs := make([]jobOutput, len(paths))
			var runnable []jobs.Job
			var index []int
			for i, path := range paths {
				outputs[i].File = path
				file, err := readJobFile(path)
				if err == nil {
					var job jobs.Job
					if job, err = file.resolve(a.Registry); err == nil {
						runnable = append(runnable, job)
						index = append(index, i)
						continue
					}
				}
				outputs[i].Error = newJobError(err)
			}

			for j, outcome := range a.Orchestrator.RunAll(cmd.Context(), runnable, parallel) {
				i := index[j]
				outputs[i] = finish(cmd.Context(), a, paths[i], outcome.Result, outcome.Err, !noStorage)
			}
			if err := printJSON(opts.Stdout, outputs); err != nil {
				return err
			}

			failed := 0
			for _, out := range outputs {
				if out.Error != nil || out.Result.Status != jobs.StatusSucceeded {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(outputs))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayP(flagRequest, "r", nil, "JSON job file (repeatable)")
	cmd.Flags().IntP(flagParallel, "p", 4, "Maximum jobs in flight; 0 runs all at once")
	cmd.Flags().Bool(flagNoStorage, false, "Do not persist binary outputs such as audio")
	return cmd
}

// finish converts a run outcome to output, storing binary results.
func finish(ctx context.Context, a *app.App, path string, res jobs.Result, err error, store bool) jobOutput {
	out := jobOutput{File: path, Result: res}
	if err != nil {
		out.Error = newJobError(err)
		return out
	}
	if store && len(res.Data) > 0 {
		key, serr := a.Store.Save(ctx, res.Provider, voice.Extension(res.ContentType), res.Data)
		if serr != nil {
			out.Error = &jobError{Kind: jobs.KindFatal, Message: "store output: " + serr.Error()}
			return out
		}
		out.StorageKey = key
	}
	return out
}
