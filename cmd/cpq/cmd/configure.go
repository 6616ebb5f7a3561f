package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/configurator"
	"github.com/solatis/cpq/internal/types"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure a model, validate and price it, and print the result",
	Long: `configure applies selections to a model, runs backend validation and
pricing, and prints an export of the session. Start from --model, or from a
share token or link with --from, or reopen a saved configuration with
--resume.`,
	Example: `  cpq configure --model bike-1 --select frame-alu=1 --select bell=2
  cpq configure --from 'https://shop.example.com/configure?config=eyJt...' --save
  cpq configure --resume cfg-42 --select bell=0 --save`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
	configureCmd.Flags().String("model", "", "model id")
	configureCmd.Flags().String("from", "", "share token or share URL to start from")
	configureCmd.Flags().String("resume", "", "saved configuration id to reopen")
	configureCmd.Flags().StringArray("select", nil, "option selection as option=quantity (repeatable; quantity 0 removes)")
	configureCmd.Flags().Bool("save", false, "persist the configuration on the backend")
	configureCmd.Flags().Int("step", configurator.FirstStep, "advance through the step gates up to this step")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.newStore(false)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := startSession(ctx, cmd, store); err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetStringArray("select")
	selections, err := parseSelections(raw)
	if err != nil {
		return err
	}
	for _, sel := range selections {
		if err := store.UpdateSelection(sel.OptionID, sel.Quantity); err != nil {
			return err
		}
	}
	dumpState("selections applied", store.Snapshot())

	store.ValidateSelections(ctx)
	st := store.Snapshot()
	dumpState("validated", st)
	if st.PricingErr != nil {
		a.log.Warn("pricing unavailable", "error", st.PricingErr)
	}
	for _, v := range st.ValidationResults {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", v.Severity, v.Message)
	}

	target, _ := cmd.Flags().GetInt("step")
	target = min(target, configurator.LastStep)
	for store.Snapshot().CurrentStep < target {
		if !store.NextStep() {
			fmt.Fprintf(cmd.ErrOrStderr(), "stopped at step %d: requirements not met\n", store.Snapshot().CurrentStep)
			break
		}
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := store.Save(ctx); err != nil {
			return err
		}
	}

	e, err := store.Export()
	if err != nil {
		return err
	}
	format, err := configurator.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return e.Write(cmd.OutOrStdout(), format)
}

// startSession loads the model from --model, the session from --from, or a
// saved configuration from --resume.
func startSession(ctx context.Context, cmd *cobra.Command, store *configurator.Store) error {
	modelID, _ := cmd.Flags().GetString("model")
	from, _ := cmd.Flags().GetString("from")
	resume, _ := cmd.Flags().GetString("resume")

	set := 0
	for _, v := range []string{modelID, from, resume} {
		if v != "" {
			set++
		}
	}

	switch {
	case set > 1:
		return fmt.Errorf("--model, --from and --resume are mutually exclusive")
	case resume != "":
		id, err := types.ParseConfigurationID(resume)
		if err != nil {
			return err
		}
		return store.Resume(ctx, id)
	case from != "":
		token, err := shareTokenArg(from)
		if err != nil {
			return err
		}
		if !store.LoadShared(ctx, token) {
			return fmt.Errorf("could not restore session from share token")
		}
		return nil
	case modelID != "":
		return store.SetModel(ctx, types.ModelID(modelID))
	default:
		return fmt.Errorf("--model, --from or --resume required")
	}
}

// shareTokenArg accepts either a bare token or a share URL.
func shareTokenArg(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return configurator.ShareTokenFromURL(arg)
	}
	return arg, nil
}

// parseSelections parses option=quantity pairs. A bare option id means
// quantity 1. Later pairs for the same option win when applied in order.
func parseSelections(raw []string) ([]types.Selection, error) {
	out := make([]types.Selection, 0, len(raw))
	for _, r := range raw {
		id, qty, found := strings.Cut(r, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid selection %q: missing option id", r)
		}
		quantity := 1
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(qty))
			if err != nil {
				return nil, fmt.Errorf("invalid selection %q: quantity must be an integer", r)
			}
			quantity = n
		}
		out = append(out, types.Selection{OptionID: types.OptionID(id), Quantity: quantity})
	}
	return out, nil
}
