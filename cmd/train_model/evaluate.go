package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cancerscope/db"
	"cancerscope/ml"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a saved artifact against a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, _ := cmd.Flags().GetString("model")
		datasetPath, _ := cmd.Flags().GetString("dataset")

		var (
			artifact *ml.Artifact
			err      error
		)
		if modelPath == "" {
			artifact, err = ml.DefaultModel()
		} else {
			artifact, err = ml.LoadModel(modelPath)
		}
		if err != nil {
			return err
		}

		dataset, err := ml.LoadDataset(datasetPath)
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		metrics, err := ml.Evaluate(artifact, dataset.Features, dataset.Labels)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s on %d rows: accuracy=%.4f precision=%.4f recall=%.4f\n",
			artifact.Name, artifact.Version, dataset.Len(), metrics.Accuracy, metrics.Precision, metrics.Recall)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded training runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		store, err := db.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		logs, err := store.LoadTrainingLog(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRAINED AT\tMODEL\tROWS\tACCURACY\tPATH")
		for _, l := range logs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.4f\t%s\n", l.TrainedAt.Format("2006-01-02 15:04"), l.ModelName, l.DataPoints, l.Accuracy, l.ModelPath)
		}
		return w.Flush()
	},
}

func init() {
	evaluateCmd.Flags().String("model", "", "artifact path (defaults to the bundled model)")
	evaluateCmd.Flags().String("dataset", "", "CSV dataset")
	evaluateCmd.MarkFlagRequired("dataset")
}
