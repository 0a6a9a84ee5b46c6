package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newTransientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transient",
		Short: "Manage persisted transient data",
		Long:  `List, inspect, set and remove messages in the transient data snapshot of the configured backend.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List message ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := openContainer(cmd)
				if err != nil {
					return err
				}
				defer c.Dispose()

				ids := c.Transient.IDs()
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transient messages found.")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), "- "+id)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Print a message as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := openContainer(cmd)
				if err != nil {
					return err
				}
				defer c.Dispose()

				v, ok := c.Transient.Message(args[0])
				if !ok {
					return fmt.Errorf("message %q not found", args[0])
				}
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "set [id] <json>",
			Short: "Store a JSON value; without an id a new one is generated",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := openContainer(cmd)
				if err != nil {
					return err
				}
				defer c.Dispose()

				raw := args[len(args)-1]
				var v any
				if err := json.Unmarshal([]byte(raw), &v); err != nil {
					return fmt.Errorf("invalid JSON value: %w", err)
				}

				var id string
				if len(args) == 2 {
					id = c.Transient.Create(args[0], v)
				} else {
					id = c.Transient.CreateMessage(v)
				}
				if err := c.Transient.Persist(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>...",
			Short: "Remove one or more messages",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := openContainer(cmd)
				if err != nil {
					return err
				}
				defer c.Dispose()

				var missing []error
				for _, id := range args {
					if _, ok := c.Transient.Message(id); !ok {
						missing = append(missing, fmt.Errorf("message %q not found", id))
						continue
					}
					c.Transient.Remove(id)
					fmt.Fprintf(cmd.OutOrStdout(), "Removed message '%s'\n", id)
				}
				if err := c.Transient.Persist(cmd.Context()); err != nil {
					return err
				}
				return errors.Join(missing...)
			},
		},
	)
	return cmd
}
