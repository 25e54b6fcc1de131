package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/mixcraft/pkg/cli"
	"github.com/haivivi/mixcraft/pkg/feedback"
	"github.com/haivivi/mixcraft/pkg/pipeline"
)

var createCmd = &cobra.Command{
	Use:   "create <prompt>",
	Short: "Create a mix from a text prompt",
	Long: `Create a mix from a free-text prompt.

The prompt describes mood, genre, energy, and anything else that matters:
tracks are sourced, analyzed, mixed, and refined until the AI critique is
satisfied or the iteration budget runs out.

A request file (-f, YAML or JSON) can supply the prompt and options
instead of flags; flags override file values.

Examples:
  mixcraft create "chill lofi beats for a rainy evening"
  mixcraft create "high energy house party mix" --duration 15m --iterations 5
  mixcraft create -f request.yaml --package`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext()
		if err != nil {
			return err
		}

		var fileReq createRequest
		if inputFile, _ := cmd.Flags().GetString("file"); inputFile != "" {
			if err := cli.LoadRequest(inputFile, &fileReq); err != nil {
				return err
			}
		}

		prompt := strings.Join(args, " ")
		if prompt == "" {
			prompt = fileReq.Prompt
		}
		if prompt == "" {
			return fmt.Errorf("a prompt is required (argument or request file)")
		}

		duration, _ := cmd.Flags().GetDuration("duration")
		if !cmd.Flags().Changed("duration") && fileReq.Duration != "" {
			if duration, err = time.ParseDuration(fileReq.Duration); err != nil {
				return fmt.Errorf("request file: bad duration: %w", err)
			}
		}
		iterations, _ := cmd.Flags().GetInt("iterations")
		if !cmd.Flags().Changed("iterations") && fileReq.Iterations != nil {
			iterations = *fileReq.Iterations
		}
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		if !cmd.Flags().Changed("threshold") && fileReq.Threshold > 0 {
			threshold = fileReq.Threshold
		}
		tracks, _ := cmd.Flags().GetInt("tracks")
		if !cmd.Flags().Changed("tracks") && fileReq.Tracks > 0 {
			tracks = fileReq.Tracks
		}
		pack, _ := cmd.Flags().GetBool("package")

		p, cleanup, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printVerbose("creating mix for prompt: %s", prompt)
		res, err := p.CreateMix(runCtx, &pipeline.Request{
			Prompt:        prompt,
			MaxDuration:   duration,
			MaxTracks:     tracks,
			MaxIterations: &iterations,
			Threshold:     threshold,
			Package:       pack,
		})
		if err != nil {
			return err
		}

		if res.Status == feedback.StatusDegraded {
			cli.PrintWarning("Refinement stopped early (%v); exported the last good mix", res.Warning)
		}
		cli.PrintSuccess("Mix exported to %s", res.Manifest.AudioPath)
		if res.PackagePath != "" {
			cli.PrintInfo("Package: %s", res.PackagePath)
		}

		if outputJSON || outputFile != "" {
			return outputResult(createOutput(res), outputFile, outputJSON)
		}
		return nil
	},
}

// createRequest is the -f request file shape.
type createRequest struct {
	Prompt     string  `yaml:"prompt" json:"prompt"`
	Duration   string  `yaml:"duration,omitempty" json:"duration,omitempty"`
	Iterations *int    `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	Threshold  float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Tracks     int     `yaml:"tracks,omitempty" json:"tracks,omitempty"`
}

// createOutput trims the run result to the fields worth piping.
func createOutput(res *pipeline.Result) any {
	type track struct {
		Source string `json:"source" yaml:"source"`
		ID     string `json:"id" yaml:"id"`
		Title  string `json:"title" yaml:"title"`
		Artist string `json:"artist" yaml:"artist"`
	}
	out := struct {
		RunID      string  `json:"run_id" yaml:"run_id"`
		Status     string  `json:"status" yaml:"status"`
		AudioPath  string  `json:"audio_path" yaml:"audio_path"`
		ReportPath string  `json:"report_path,omitempty" yaml:"report_path,omitempty"`
		Package    string  `json:"package,omitempty" yaml:"package,omitempty"`
		Duration   string  `json:"duration" yaml:"duration"`
		Iterations int     `json:"iterations" yaml:"iterations"`
		Score      float64 `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
		Tracks     []track `json:"tracks" yaml:"tracks"`
	}{
		RunID:      res.RunID,
		Status:     string(res.Status),
		AudioPath:  res.Manifest.AudioPath,
		ReportPath: res.Manifest.ReportPath,
		Package:    res.PackagePath,
		Duration:   res.Mix.Duration.Round(time.Second).String(),
		Iterations: res.Mix.IterationCount,
	}
	if n := len(res.Critiques); n > 0 {
		out.Score = res.Critiques[n-1].QualityScore
	}
	for _, t := range res.Tracks {
		out.Tracks = append(out.Tracks, track{Source: t.Source, ID: t.ID, Title: t.Title, Artist: t.Artist})
	}
	return out
}

func init() {
	createCmd.Flags().Duration("duration", 10*time.Minute, "Target mix duration")
	createCmd.Flags().Int("iterations", feedback.DefaultMaxIterations, "Maximum refinement iterations")
	createCmd.Flags().Float64("threshold", feedback.DefaultThreshold, "Quality score (0-10) that accepts the mix")
	createCmd.Flags().Int("tracks", 5, "Maximum tracks to source")
	createCmd.Flags().Bool("package", false, "Also bundle the export into a zip package")
	createCmd.Flags().StringP("file", "f", "", "Request file (YAML or JSON)")
}
