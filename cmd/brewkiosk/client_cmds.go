package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brewcode-go/types"
)

func newOrderCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "order [order-id]",
		Short: "Start a brew run",
		Long: `Start a brew run for an order. Without an id the controller
generates one. Fails with busy while another run or trigger is active.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			got, err := c.Order(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "order", got, "accepted")
			return nil
		},
	}
}

func newTriggerCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run a diagnostic trigger",
	}

	testLED := &cobra.Command{
		Use:   "test-led",
		Short: "Light every indicator briefly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.trigger(cmd, types.Trigger{Action: types.ActionTestLED})
		},
	}

	var (
		pin int
		dur time.Duration
	)
	completion := &cobra.Command{
		Use:   "completion",
		Short: "Hold one indicator on as a completion signal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.trigger(cmd, types.Trigger{
				Action:   types.ActionCompletionSignal,
				LedPin:   pin,
				Duration: int(dur / time.Millisecond),
			})
		},
	}
	completion.Flags().IntVar(&pin, "pin", 0, "indicator GPIO (0: configured default)")
	completion.Flags().DurationVar(&dur, "duration", 0, "how long to hold it (0: configured default)")

	cmd.AddCommand(testLED, completion)
	return cmd
}

func (f *rootFlags) trigger(cmd *cobra.Command, t types.Trigger) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	if err := c.Trigger(cmd.Context(), t); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Action, "started")
	return nil
}

func newAbortCmd(f *rootFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Abort the active run or trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			if err := c.Abort(cmd.Context(), reason); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cli", "reason recorded with the abort")
	return cmd
}

func newStateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the sequencer state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.client()
			if err != nil {
				return err
			}
			st, err := c.State(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}
