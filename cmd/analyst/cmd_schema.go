package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"analyst/internal/dataset"
)

var (
	schemaDescribe bool
	schemaHead     int
)

// schemaCmd prints the dataset summary the planner sees
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the loaded dataset's columns",
	Long: `Loads the dataset with the configured column mapping and prints the
summary handed to the planner. No language model is contacted.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaDescribe, "describe", false, "Also print summary statistics for numeric columns")
	schemaCmd.Flags().IntVar(&schemaHead, "head", 0, "Also print the first N rows")
}

func runSchema(cmd *cobra.Command, args []string) error {
	frame, err := dataset.LoadCSV(cfg.Dataset.Path, cfg.ToLoadOptions())
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, frame.Info())
	if schemaDescribe {
		fmt.Fprintln(out)
		fmt.Fprint(out, frame.DescribeString())
	}
	if schemaHead > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, frame.Head(schemaHead).String())
	}
	return nil
}
