package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/strategy/factory"
	"github.com/spf13/cobra"
)

var strategiesSchema string

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies and their presets",
	RunE:  runStrategies,
}

func init() {
	strategiesCmd.Flags().StringVar(&strategiesSchema, "schema", "", "Print the parameter JSON schema of a strategy")
	rootCmd.AddCommand(strategiesCmd)
}

func runStrategies(cmd *cobra.Command, args []string) error {
	if strategiesSchema != "" {
		schema, err := factory.Schema(strategiesSchema)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, nil)
	if err != nil {
		return err
	}

	reg := a.Strategies()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tPRESETS\tDESCRIPTION")
	for _, name := range reg.Names() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(reg.Presets(name), ","), reg.Description(name))
	}
	return w.Flush()
}
