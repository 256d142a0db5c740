package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dpup/gatehouse"
	"github.com/spf13/cobra"
)

func configCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "keys",
			Short: "List every known configuration key",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printKeys(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with secrets masked",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := gatehouse.LoadConfig(*configFile); err != nil {
					return err
				}
				return printEffective(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate configuration without starting the server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := loadConfig(*configFile, cmd.ErrOrStderr()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ configuration is valid")
				return nil
			},
		},
	)
	return cmd
}

// loadConfig reads and validates configuration, printing warnings about
// unknown keys to w.
func loadConfig(configFile string, w io.Writer) error {
	if err := gatehouse.LoadConfig(configFile); err != nil {
		return err
	}
	if warnings := gatehouse.ConfigWarnings(); warnings != "" {
		fmt.Fprintln(w, warnings)
	}
	return gatehouse.CheckConfig()
}

func printKeys(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tDEFAULT\tDESCRIPTION")
	for _, k := range gatehouse.RegisteredConfigKeys() {
		def := ""
		if k.Default != nil {
			def = fmt.Sprint(k.Default)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.Key, k.Type, def, k.Description)
	}
	return tw.Flush()
}

func printEffective(w io.Writer) error {
	cfg := gatehouse.EffectiveConfig()
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%v\n", k, cfg[k])
	}
	return tw.Flush()
}
