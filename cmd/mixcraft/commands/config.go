package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/mixcraft/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple API configurations,
similar to kubectl's context management.

Configuration is stored in ~/.mixcraft/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  mixcraft config add-context default --openai-key sk-...
  mixcraft config add-context full --openai-key sk-... --jamendo-client-id ID --freesound-token TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		openaiKey, err := cmd.Flags().GetString("openai-key")
		if err != nil {
			return fmt.Errorf("failed to read 'openai-key' flag: %w", err)
		}
		if openaiKey == "" {
			return fmt.Errorf("--openai-key is required")
		}

		baseURL, err := cmd.Flags().GetString("openai-base-url")
		if err != nil {
			return fmt.Errorf("failed to read 'openai-base-url' flag: %w", err)
		}
		model, err := cmd.Flags().GetString("model")
		if err != nil {
			return fmt.Errorf("failed to read 'model' flag: %w", err)
		}
		jamendoID, err := cmd.Flags().GetString("jamendo-client-id")
		if err != nil {
			return fmt.Errorf("failed to read 'jamendo-client-id' flag: %w", err)
		}
		freesoundToken, err := cmd.Flags().GetString("freesound-token")
		if err != nil {
			return fmt.Errorf("failed to read 'freesound-token' flag: %w", err)
		}
		timeout, err := cmd.Flags().GetInt("timeout")
		if err != nil {
			return fmt.Errorf("failed to read 'timeout' flag: %w", err)
		}
		maxRetries, err := cmd.Flags().GetInt("max-retries")
		if err != nil {
			return fmt.Errorf("failed to read 'max-retries' flag: %w", err)
		}

		ctx := &cli.Context{
			OpenAIKey:       openaiKey,
			OpenAIBaseURL:   baseURL,
			Model:           model,
			JamendoClientID: jamendoID,
			FreesoundToken:  freesoundToken,
			Timeout:         timeout,
			MaxRetries:      maxRetries,
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tMODEL\tSOURCES")

		for name, ctx := range cfg.Contexts {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			model := ctx.Model
			if model == "" {
				model = "(default)"
			}
			sources := "none"
			switch {
			case ctx.JamendoClientID != "" && ctx.FreesoundToken != "":
				sources = "jamendo,freesound"
			case ctx.JamendoClientID != "":
				sources = "jamendo"
			case ctx.FreesoundToken != "":
				sources = "freesound"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, model, sources)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		if len(cfg.Contexts) > 0 {
			fmt.Println("\nContext details:")
			for name, ctx := range cfg.Contexts {
				fmt.Printf("\n  %s:\n", name)
				fmt.Printf("    OpenAI Key: %s\n", cli.MaskAPIKey(ctx.OpenAIKey))
				if ctx.OpenAIBaseURL != "" {
					fmt.Printf("    OpenAI Base URL: %s\n", ctx.OpenAIBaseURL)
				}
				if ctx.Model != "" {
					fmt.Printf("    Model: %s\n", ctx.Model)
				}
				if ctx.JamendoClientID != "" {
					fmt.Printf("    Jamendo Client ID: %s\n", cli.MaskAPIKey(ctx.JamendoClientID))
				}
				if ctx.FreesoundToken != "" {
					fmt.Printf("    Freesound Token: %s\n", cli.MaskAPIKey(ctx.FreesoundToken))
				}
				if ctx.Timeout > 0 {
					fmt.Printf("    Timeout: %ds\n", ctx.Timeout)
				}
			}
		}

		return nil
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().String("openai-key", "", "OpenAI API key (required)")
	configAddContextCmd.Flags().String("openai-base-url", "", "OpenAI API base URL")
	configAddContextCmd.Flags().String("model", "", "Chat model for planning and critique")
	configAddContextCmd.Flags().String("jamendo-client-id", "", "Jamendo API client id")
	configAddContextCmd.Flags().String("freesound-token", "", "Freesound API token")
	configAddContextCmd.Flags().Int("timeout", 0, "Request timeout in seconds")
	configAddContextCmd.Flags().Int("max-retries", 0, "Maximum retries")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
