package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/solatis/cpq/internal/types"
)

var modelsCmd = &cobra.Command{
	Use:   "models [model-id]",
	Short: "List product models, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runModels,
}

var modelsCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a model template from a YAML or JSON file (admin)",
	Example: "  cpq models create -f bike.yaml",
	Args:    cobra.NoArgs,
	RunE:    runModelsCreate,
}

var modelsUpdateCmd = &cobra.Command{
	Use:   "update <model-id>",
	Short: "Replace a model template from a YAML or JSON file (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsUpdate,
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <model-id>",
	Short: "Delete a model template (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDelete,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().String("search", "", "free-text search")
	modelsCmd.Flags().String("category", "", "category filter")
	modelsCmd.Flags().String("active", "", "active filter (true, false)")
	modelsCmd.Flags().Bool("refresh", false, "bypass the local model cache")

	modelsCmd.AddCommand(modelsCreateCmd, modelsUpdateCmd, modelsDeleteCmd)
	for _, c := range []*cobra.Command{modelsCreateCmd, modelsUpdateCmd} {
		c.Flags().StringP("file", "f", "", "model template file ('-' for stdin)")
		_ = c.MarkFlagRequired("file")
	}
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	refresh, _ := cmd.Flags().GetBool("refresh")

	if len(args) == 1 {
		id := types.ModelID(args[0])
		if refresh {
			if err := a.catalog.Invalidate(id); err != nil {
				return err
			}
		}
		m, err := a.catalog.Model(ctx, id)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), m)
	}

	if refresh {
		if err := a.catalog.InvalidateAll(); err != nil {
			return err
		}
	}
	filter, err := modelFilter(cmd)
	if err != nil {
		return err
	}
	models, err := a.catalog.Models(ctx, filter)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), models)
}

func modelFilter(cmd *cobra.Command) (types.ModelFilter, error) {
	var f types.ModelFilter
	f.Search, _ = cmd.Flags().GetString("search")
	f.Category, _ = cmd.Flags().GetString("category")
	if cmd.Flags().Changed("active") {
		raw, _ := cmd.Flags().GetString("active")
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("--active: %w", err)
		}
		f.Active = &active
	}
	return f, nil
}

func runModelsCreate(cmd *cobra.Command, args []string) error {
	m, err := readModelFlag(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.catalog.CreateModel(ctx, m)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), created)
}

func runModelsUpdate(cmd *cobra.Command, args []string) error {
	m, err := readModelFlag(cmd)
	if err != nil {
		return err
	}
	m.ID = types.ModelID(args[0])

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	updated, err := a.catalog.UpdateModel(ctx, m)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), updated)
}

func runModelsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.catalog.DeleteModel(ctx, types.ModelID(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted model %s\n", args[0])
	return nil
}

func readModelFlag(cmd *cobra.Command) (*types.Model, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "-" {
		return readModel(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()
	return readModel(f)
}

// readModel decodes a model template written as YAML or JSON. The document
// is normalized to JSON first so enum fields go through their JSON decoders.
func readModel(r io.Reader) (*types.Model, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("model file is empty")
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	var m types.Model
	if err := json.Unmarshal(normalized, &m); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("invalid model: name is required")
	}
	return &m, nil
}
