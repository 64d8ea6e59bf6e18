package cmds

import (
	"fmt"

	"github.com/go-go-golems/novachat/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type ConfigCommand struct {
	*cobra.Command
}

func NewConfigCommand() *cobra.Command {
	cmd := &ConfigCommand{}

	cobraCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the novachat configuration",
	}

	cobraCmd.AddCommand(cmd.newInitCommand())
	cobraCmd.AddCommand(cmd.newShowCommand())
	cobraCmd.AddCommand(cmd.newPathCommand())

	cmd.Command = cobraCmd
	return cobraCmd
}

func (c *ConfigCommand) newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func (c *ConfigCommand) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := NewViper(cmd)
			if err != nil {
				return err
			}
			if _, err := config.Load(v); err != nil {
				return err
			}
			b, err := yaml.Marshal(redact(v.AllSettings()))
			if err != nil {
				return errors.Wrap(err, "could not encode configuration")
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func (c *ConfigCommand) newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := NewViper(cmd)
			if err != nil {
				return err
			}
			if _, err := config.Load(v); err != nil {
				return err
			}
			used := v.ConfigFileUsed()
			if used == "" {
				used = "(none, built-in defaults; `novachat config init` writes " + config.DefaultPath() + ")"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), used)
			return err
		},
	}
}

// redact masks credentials in a settings tree.
func redact(settings map[string]interface{}) map[string]interface{} {
	for k, val := range settings {
		switch x := val.(type) {
		case map[string]interface{}:
			settings[k] = redact(x)
		case string:
			if k == "api_key" && x != "" {
				settings[k] = "***"
			}
		}
	}
	return settings
}
