package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"agentflow/internal/llm"
	"agentflow/internal/ui"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models from a provider",
	Long: `List available models from a provider.

This command queries the provider's models API to discover what models
are available. Useful for finding model names to configure.

Examples:
  agentflow models                       # current provider
  agentflow models -p anthropic          # models from Anthropic
  agentflow models -p ollama             # models from a local Ollama
  agentflow models --json                # output as JSON`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

func runModels(cmd *cobra.Command, args []string) error {
	provider, _, err := setupProvider()
	if err != nil {
		return err
	}

	lister, ok := provider.(llm.ModelLister)
	if !ok {
		return fmt.Errorf("provider %s does not support listing models", provider.Name())
	}
	models, err := lister.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if modelsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	renderModelTable(os.Stdout, models)
	return nil
}

// maxNameWidth bounds the NAME column so one verbose display name does
// not blow out the table.
const maxNameWidth = 40

// renderModelTable prints an aligned table, sizing columns by display
// width so wide (CJK) model names stay lined up.
func renderModelTable(w io.Writer, models []llm.ModelInfo) {
	type row struct {
		id, name, created string
	}
	rows := make([]row, 0, len(models))
	idWidth, nameWidth := ui.StringWidth("ID"), ui.StringWidth("NAME")

	for _, m := range models {
		name := m.DisplayName
		if name == "" {
			name = m.OwnedBy
		}
		name = ui.TruncateWidth(name, maxNameWidth)
		created := ""
		if m.Created > 0 {
			created = time.Unix(m.Created, 0).Format("2006-01-02")
		}
		r := row{id: m.ID, name: name, created: created}
		if width := ui.StringWidth(r.id); width > idWidth {
			idWidth = width
		}
		if width := ui.StringWidth(r.name); width > nameWidth {
			nameWidth = width
		}
		rows = append(rows, r)
	}

	fmt.Fprintf(w, "%s  %s  %s\n", ui.PadRight("ID", idWidth), ui.PadRight("NAME", nameWidth), "CREATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s  %s  %s\n", ui.PadRight(r.id, idWidth), ui.PadRight(r.name, nameWidth), r.created)
	}
}
