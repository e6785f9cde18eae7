package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/vectorify/vectorify/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the global configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective global configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			gcfg, err := config.LoadGlobal(config.GlobalConfigPath())
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n", config.GlobalConfigPath())
			return toml.NewEncoder(os.Stdout).Encode(gcfg)
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default global config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GlobalConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveGlobal(path, config.DefaultGlobal()); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
