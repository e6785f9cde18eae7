package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorify/vectorify/internal/config"
	"github.com/vectorify/vectorify/internal/embedder"
	"github.com/vectorify/vectorify/internal/multilayer"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate [config.json]",
		Short: "Check a layer configuration without embedding anything",
		Long: `Parse and validate a layer configuration file: layer names, embedder
types and parameters, weights, and fusion dimensionality. Validation
never contacts an embedding backend, but API-backed layers do need
their key available (layer parameter, environment variable, or the
global config) since a missing key is a configuration error.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("a config file is required (argument or --config)")
			}
			set, err := config.LoadLayerSet(path)
			if err != nil {
				return err
			}
			gcfg, _ := config.LoadGlobal(config.GlobalConfigPath())
			set.ApplyDefaults(gcfg)
			comp, err := multilayer.New(set, nil)
			if err != nil {
				return err
			}

			fmt.Printf("%s: valid\n", path)
			for _, l := range comp.Layers() {
				trainable := ""
				if _, ok := l.Embedder.(embedder.Trainable); ok {
					trainable = " (trainable)"
				}
				fmt.Printf("  layer %-16s %s, %d dims, weight %v%s\n",
					l.Name, l.Type, l.Embedder.Dimension(), l.Weight, trainable)
			}
			fmt.Printf("  fusion output: %d dims\n", comp.Dimension())
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Layer configuration JSON file")
	return cmd
}
