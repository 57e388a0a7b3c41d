package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"speech-data-explorer/backend/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigValidateCommand(configFlag))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var output string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if !overwrite {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --overwrite)", output)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Destination file, or - for stdout")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, resolved, exists, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintln(cmd.OutOrStdout(), "no configuration file; defaults and environment are valid")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", resolved)
			return nil
		},
	}
}
