package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Get mix prompt ideas",
	Long: `Ask for creative mix prompt ideas for a mood and optional genre.

Examples:
  mixcraft suggest --mood chill
  mixcraft suggest --mood energetic --genre house --duration 15m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mood, _ := cmd.Flags().GetString("mood")
		if mood == "" {
			return fmt.Errorf("--mood is required")
		}
		genre, _ := cmd.Flags().GetString("genre")
		duration, _ := cmd.Flags().GetDuration("duration")

		ctx, err := getContext()
		if err != nil {
			return err
		}
		prod, err := buildProducer(ctx)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), ctx.RequestTimeout(60*time.Second))
		defer cancel()

		suggestions, err := prod.SuggestPrompts(reqCtx, mood, genre, duration)
		if err != nil {
			return err
		}

		if outputJSON || outputFile != "" {
			return outputResult(map[string]any{"suggestions": suggestions}, outputFile, outputJSON)
		}
		for i, s := range suggestions {
			fmt.Printf("%d. %s\n", i+1, s)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().String("mood", "", "Mood to build prompts around (required)")
	suggestCmd.Flags().String("genre", "", "Optional genre")
	suggestCmd.Flags().Duration("duration", 5*time.Minute, "Target mix duration")
}
