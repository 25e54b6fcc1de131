package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/cli"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analysis cache",
	Long: `Manage the on-disk analysis cache.

Track analysis (tempo, key, energy) is cached by file digest under
~/.mixcraft/cache so repeated runs skip re-analysis.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached analysis results",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := cli.NewPaths()
		if err != nil {
			return err
		}
		cache, err := analysis.OpenCache(paths.CacheDir())
		if err != nil {
			return err
		}
		defer cache.Close()

		n, err := cache.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d cached analysis entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
