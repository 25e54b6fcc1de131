package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/mixcraft/pkg/cli"
	"github.com/haivivi/mixcraft/pkg/feedback"
	"github.com/haivivi/mixcraft/pkg/pipeline"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Start interactive mode",
	Long: `Start an interactive shell for creating mixes.

Commands inside the shell:
  create <prompt>  - create a mix
  suggest <mood>   - get prompt ideas
  ctx [name]       - show or switch context
  help             - show help
  quit             - exit

Examples:
  mixcraft interactive
  mixcraft i`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

var interactiveStyles = cli.NewStyles(cli.DefaultTheme)

func runInteractive() error {
	fmt.Println(interactiveStyles.Title.Render("mixcraft - interactive mode"))
	fmt.Println(interactiveStyles.Help.Render("type 'help' for commands, 'quit' to exit"))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		ctx, _ := getContext()
		ctxName := "(none)"
		if ctx != nil && ctx.Name != "" {
			ctxName = ctx.Name
		}

		fmt.Printf("%s mixcraft> ", interactiveStyles.Label.Render("["+ctxName+"]"))

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		command := parts[0]

		switch command {
		case "help", "h", "?":
			showInteractiveHelp()

		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return nil

		case "ctx", "context":
			handleContextCommand(parts[1:])

		case "create":
			if len(parts) < 2 {
				cli.PrintError("usage: create <prompt>")
				continue
			}
			handleInteractiveCreate(strings.Join(parts[1:], " "))

		case "suggest":
			if len(parts) < 2 {
				cli.PrintError("usage: suggest <mood> [genre]")
				continue
			}
			genre := ""
			if len(parts) > 2 {
				genre = parts[2]
			}
			handleInteractiveSuggest(parts[1], genre)

		default:
			cli.PrintError("unknown command %q, try 'help'", command)
		}
	}
	return nil
}

func showInteractiveHelp() {
	fmt.Println(interactiveStyles.Label.Render("Commands:"))
	fmt.Println("  create <prompt>     create a mix from a prompt")
	fmt.Println("  suggest <mood> [g]  get prompt ideas for a mood (and genre)")
	fmt.Println("  ctx [name]          show or switch context")
	fmt.Println("  help                show this help")
	fmt.Println("  quit                exit")
}

func handleContextCommand(args []string) {
	cfg := getConfig()
	if len(args) == 0 {
		current := cfg.CurrentContext
		if contextName != "" {
			current = contextName
		}
		if current == "" {
			fmt.Println("No context selected")
		} else {
			fmt.Printf("Current context: %s\n", current)
		}
		if names := cfg.ListContexts(); len(names) > 0 {
			fmt.Printf("Available: %s\n", strings.Join(names, ", "))
		}
		return
	}
	if err := cfg.UseContext(args[0]); err != nil {
		cli.PrintError("%v", err)
		return
	}
	contextName = args[0]
	cli.PrintSuccess("Switched to context %q", args[0])
}

func handleInteractiveCreate(prompt string) {
	ctx, err := getContext()
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	p, cleanup, err := buildPipeline(ctx)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	defer cleanup()

	cli.PrintInfo("Creating mix, this can take a few minutes...")
	res, err := p.CreateMix(context.Background(), &pipeline.Request{Prompt: prompt})
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	if res.Status == feedback.StatusDegraded {
		cli.PrintWarning("Refinement stopped early; exported the last good mix")
	}
	cli.PrintSuccess("Mix exported to %s", res.Manifest.AudioPath)
}

func handleInteractiveSuggest(mood, genre string) {
	ctx, err := getContext()
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	prod, err := buildProducer(ctx)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	suggestions, err := prod.SuggestPrompts(reqCtx, mood, genre, 5*time.Minute)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	for i, s := range suggestions {
		fmt.Printf("%d. %s\n", i+1, s)
	}
}
