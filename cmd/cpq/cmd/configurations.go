package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/types"
)

var configurationsCmd = &cobra.Command{
	Use:     "configurations",
	Aliases: []string{"cfg"},
	Short:   "Inspect and edit configurations stored on the backend",
}

var configurationsShowCmd = &cobra.Command{
	Use:   "show <configuration-id>",
	Short: "Show a stored configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigurationsShow,
}

var configurationsSelectCmd = &cobra.Command{
	Use:   "select <configuration-id> <option[=quantity]>...",
	Short: "Change selections of a stored configuration",
	Long: `select edits a stored configuration one option at a time. New options are
added, present ones get the new quantity, and quantity 0 removes an option.`,
	Example: "  cpq configurations select cfg-42 frame-alu bell=2 basket=0",
	Args:    cobra.MinimumNArgs(2),
	RunE:    runConfigurationsSelect,
}

var configurationsPriceCmd = &cobra.Command{
	Use:   "price <configuration-id>",
	Short: "Price a stored configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigurationsPrice,
}

var configurationsDeleteCmd = &cobra.Command{
	Use:   "delete <configuration-id>",
	Short: "Delete a stored configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigurationsDelete,
}

func init() {
	rootCmd.AddCommand(configurationsCmd)
	configurationsCmd.AddCommand(
		configurationsShowCmd,
		configurationsSelectCmd,
		configurationsPriceCmd,
		configurationsDeleteCmd,
	)
}

func runConfigurationsShow(cmd *cobra.Command, args []string) error {
	id, err := types.ParseConfigurationID(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.client.GetConfiguration(ctx, id)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), cfg)
}

// selectionOp is one per-option call against a stored configuration.
type selectionOp struct {
	kind string // add, update or remove
	sel  types.Selection
}

// planSelectionOps turns requested changes into per-option calls against the
// stored selections. Later changes to the same option win; removing an absent
// option is skipped.
func planSelectionOps(stored types.Selections, changes []types.Selection) []selectionOp {
	current := stored.Clone()
	ops := make([]selectionOp, 0, len(changes))
	for _, c := range changes {
		_, present := current[c.OptionID]
		switch {
		case c.Quantity <= 0 && !present:
			continue
		case c.Quantity <= 0:
			ops = append(ops, selectionOp{kind: "remove", sel: c})
		case present:
			ops = append(ops, selectionOp{kind: "update", sel: c})
		default:
			ops = append(ops, selectionOp{kind: "add", sel: c})
		}
		current.Set(c.OptionID, c.Quantity)
	}
	return ops
}

func runConfigurationsSelect(cmd *cobra.Command, args []string) error {
	id, err := types.ParseConfigurationID(args[0])
	if err != nil {
		return err
	}
	changes, err := parseSelections(args[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.client.GetConfiguration(ctx, id)
	if err != nil {
		return err
	}
	for _, op := range planSelectionOps(types.SelectionsFromItems(cfg.Selections), changes) {
		switch op.kind {
		case "add":
			_, err = a.client.AddSelection(ctx, id, op.sel)
		case "update":
			_, err = a.client.UpdateSelection(ctx, id, op.sel)
		case "remove":
			err = a.client.RemoveSelection(ctx, id, op.sel.OptionID)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", op.kind, op.sel.OptionID, err)
		}
	}

	cfg, err = a.client.GetConfiguration(ctx, id)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), cfg)
}

func runConfigurationsPrice(cmd *cobra.Command, args []string) error {
	id, err := types.ParseConfigurationID(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pricing, err := a.client.PriceConfiguration(ctx, id)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), pricing)
}

func runConfigurationsDelete(cmd *cobra.Command, args []string) error {
	id, err := types.ParseConfigurationID(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.DeleteConfiguration(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted configuration %s\n", id)
	return nil
}
