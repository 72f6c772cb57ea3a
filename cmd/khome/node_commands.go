package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"khome/internal/inventory"
	"khome/internal/ipc"
)

func newStructureCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "structure",
		Short: "Show registered nodes, modules, and actors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Structure("")
				if err != nil {
					return err
				}
				encoded, err := json.MarshalIndent(resp.Structure, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			})
		},
	}
}

func newDataCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "data [key...]",
		Short: "Show last reported values, optionally filtered by box key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Data(args)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(resp.Data))
				for _, entry := range resp.Data {
					key, _ := entry["key"].(string)
					boxes, _ := entry["boxes"].(map[string]any)
					names := make([]string, 0, len(boxes))
					for name := range boxes {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						rows = append(rows, []string{key, name, valueString(boxes[name])})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No data")
					return nil
				}
				table := renderTable([]string{"Key", "Box", "Value"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newTimetableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "timetable",
		Short: "Show scheduled events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Timetable()
				if err != nil {
					return err
				}
				if len(resp.Timetable) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Timetable is empty")
					return nil
				}
				times := make([]string, 0, len(resp.Timetable))
				for at := range resp.Timetable {
					times = append(times, at)
				}
				sort.Strings(times)
				rows := make([][]string, 0, len(times))
				for _, at := range times {
					rows = append(rows, []string{at, valueString(resp.Timetable[at])})
				}
				table := renderTable([]string{"Time", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <node>",
		Short: "Check a node for liveness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Ping(args[0])
				if err != nil {
					return err
				}
				if resp.TimedOut {
					fmt.Fprintf(cmd.OutOrStdout(), "Node %s did not answer\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Node %s answered: %s\n", args[0], valueString(resp.Answer))
				return nil
			})
		},
	}
}

func newSignalCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "signal <node> <module> <value>",
		Short: "Send a value to a module",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Signal(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				if resp.TimedOut {
					fmt.Fprintf(cmd.OutOrStdout(), "Node %s did not answer\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Answer: %s\n", valueString(resp.Answer))
				return nil
			})
		},
	}
}

func newModuleCommand(ctx *commandContext) *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Manage modules installed on nodes",
	}

	var pin, typ, alias, name string
	addCmd := &cobra.Command{
		Use:   "add <node>",
		Short: "Install a module on a node pin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				cfg := inventory.ModuleConfig{Pin: pin, Type: typ, Alias: alias, Name: name}
				resp, err := client.ModuleAdd(args[0], []inventory.ModuleConfig{cfg})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %d module(s) on %s\n", resp.Count, args[0])
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&pin, "pin", "", "GPIO pin number")
	addCmd.Flags().StringVar(&typ, "type", "", "Module type id")
	addCmd.Flags().StringVar(&alias, "alias", "", "Module alias, unique within the node")
	addCmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the alias)")
	_ = addCmd.MarkFlagRequired("pin")
	_ = addCmd.MarkFlagRequired("type")
	_ = addCmd.MarkFlagRequired("alias")

	rmCmd := &cobra.Command{
		Use:   "rm <node> <alias>...",
		Short: "Remove modules from a node",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ModuleRemove(args[0], args[1:])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d module(s) from %s\n", resp.Count, args[0])
				return nil
			})
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <node> <module> <name>",
		Short: "Set a module's display name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ModuleRename(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				if resp.Count == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Name unchanged")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s/%s to %q\n", args[0], args[1], args[2])
				return nil
			})
		},
	}

	moduleCmd.AddCommand(addCmd, rmCmd, renameCmd)
	return moduleCmd
}

func valueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return string(encoded)
	}
}
