package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crate2gn/crate2gn/internal/config"
)

func newValidateCommand(global *globalParams) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config...]",
		Short: "Check configuration files against the schema",
		Long:  "Validate merges the given configuration files, or those passed with --config, applies --config-patch and checks the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.LoadOptions{
				Files:         append(global.configFiles, args...),
				ConflictError: global.mergeConflict,
				PatchFile:     global.configPatch,
			}
			if len(opts.Files) == 0 {
				return fmt.Errorf("no configuration files given")
			}

			cfg, err := config.Load(opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (%d crates configured)\n", len(cfg.Crate))

			if opts.PatchFile != "" {
				opts.PatchFile = ""
				unpatched, err := config.Load(opts)
				if err != nil {
					return err
				}
				if unpatched.Equal(cfg) {
					fmt.Fprintf(cmd.OutOrStdout(), "configuration patch %s changes nothing\n", global.configPatch)
				}
			}
			return nil
		},
	}
}
