package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/configurator"
	"github.com/solatis/cpq/internal/types"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Create a share link for a configuration",
	RunE:  runShare,
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <token-or-url>",
	Short: "Show what a share token or link contains",
	Args:  cobra.ExactArgs(1),
	RunE:  runShareDecode,
}

func init() {
	rootCmd.AddCommand(shareCmd)
	shareCmd.AddCommand(shareDecodeCmd)
	shareCmd.Flags().String("model", "", "model id")
	shareCmd.Flags().StringArray("select", nil, "option selection as option=quantity (repeatable)")
	shareCmd.Flags().String("base-url", "", "page URL to append the share token to (prints the bare token if empty)")
	_ = shareCmd.MarkFlagRequired("model")
}

func runShare(cmd *cobra.Command, args []string) error {
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

	modelID, _ := cmd.Flags().GetString("model")
	if err := store.SetModel(ctx, types.ModelID(modelID)); err != nil {
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
	dumpState("shared", store.Snapshot())

	base, _ := cmd.Flags().GetString("base-url")
	var out string
	if base == "" {
		out, err = store.ShareToken()
	} else {
		out, err = store.GenerateShareURL(base)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

type decodedShare struct {
	ModelID    types.ModelID    `json:"model_id" yaml:"model_id"`
	Selections types.Selections `json:"selections" yaml:"selections"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
}

func runShareDecode(cmd *cobra.Command, args []string) error {
	token, err := shareTokenArg(args[0])
	if err != nil {
		return err
	}
	modelID, sel, at, err := configurator.DecodeShareToken(token)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), decodedShare{ModelID: modelID, Selections: sel, CreatedAt: at.UTC()})
}
