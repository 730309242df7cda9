package cmd

import (
	"fmt"

	"github.com/emutools/objdiff/pkg/obj"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change the diff configuration property bag",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configuration property id, kind and default",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range obj.Properties() {
			switch p.Kind {
			case obj.PropertyBoolean:
				fmt.Printf("%-24s boolean  default=%v  %s\n", p.ID, p.DefaultBool, p.DisplayName)
			case obj.PropertyChoice:
				fmt.Printf("%-24s choice   default=%s  %s\n", p.ID, p.DefaultChoice, p.DisplayName)
			}
		}
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one configuration property's current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		v, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <id> <value>",
	Short: "Set one configuration property and persist it to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.SetFromString(args[0], args[1]); err != nil {
			return err
		}
		viper.Set("diff."+args[0], args[1])
		return viper.WriteConfig()
	},
}

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
}

func viperGetString(key string) string {
	if !viper.IsSet(key) {
		return ""
	}
	return viper.GetString(key)
}
