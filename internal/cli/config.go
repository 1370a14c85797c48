package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage scribe configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolvePath(flagConfig)
		if err != nil {
			fail(err)
			return nil
		}
		suffix := ""
		if _, err := os.Stat(path); err != nil {
			suffix = " (not created; run scribe config init)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), path+suffix)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file holding the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Init(flagConfig)
		if err != nil {
			fail(err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\nEdit it directly or with scribe config set <key> <value>.\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration key in the file",
	Long:  "Set a configuration value. Known keys:\n  " + strings.Join(config.Keys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetField(flagConfig, args[0], args[1]); err != nil {
			fail(usagef("%v", err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after env and flag overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if flagFormat == "json" {
			cfg, err := loadConfig(nil)
			if err != nil {
				fail(err)
				return nil
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		}
		data, err := config.Dump(flagConfig, nil)
		if err != nil {
			fail(usagef("%v", err))
			return nil
		}
		if path, err := config.ResolvePath(flagConfig); err == nil {
			fmt.Fprintf(w, "# file: %s\n", path)
		}
		_, err = w.Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
