package main

import (
	"github.com/spf13/cobra"

	"brewcode-go/services/config"
)

func newConfigCmd(f *rootFlags) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			if check {
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "validate before printing")
	return cmd
}
