package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cancerscope/db"
	"cancerscope/ml"
	"cancerscope/pipeline"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Clean a dataset, fit scaler and classifier, save the artifact",
	RunE:  runTrain,
}

func init() {
	defaults := ml.DefaultTrainConfig()

	flags := trainCmd.Flags()
	flags.String("dataset", "", "CSV dataset (wdbc.data layout or headered with a diagnosis/target column)")
	flags.String("out", "models/breast_cancer_model.json", "artifact output path")
	flags.String("model-type", defaults.ModelType, "random_forest or decision_tree")
	flags.String("name", defaults.Name, "artifact name")
	flags.String("version", "", "artifact version (defaults to the training date)")
	flags.Int("trees", defaults.Forest.NumTrees, "number of trees in the forest")
	flags.Int("depth", defaults.Forest.MaxDepth, "maximum tree depth")
	flags.Int("min-split", defaults.Forest.MinSamplesSplit, "minimum samples to split a node")
	flags.Int64("seed", defaults.Forest.Seed, "random seed for the split and the forest")
	flags.Float64("test-ratio", defaults.TestRatio, "fraction of rows held out for evaluation")
	flags.Bool("correct-outliers", false, "replace values beyond 3 standard deviations with the column median")
	trainCmd.MarkFlagRequired("dataset")
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	datasetPath, _ := flags.GetString("dataset")
	out, _ := flags.GetString("out")
	correct, _ := flags.GetBool("correct-outliers")

	config := ml.DefaultTrainConfig()
	config.ModelType, _ = flags.GetString("model-type")
	config.Name, _ = flags.GetString("name")
	config.Version, _ = flags.GetString("version")
	config.TestRatio, _ = flags.GetFloat64("test-ratio")
	config.Forest.NumTrees, _ = flags.GetInt("trees")
	config.Forest.MaxDepth, _ = flags.GetInt("depth")
	config.Forest.MinSamplesSplit, _ = flags.GetInt("min-split")
	config.Forest.Seed, _ = flags.GetInt64("seed")

	dataset, err := ml.LoadDataset(datasetPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("path", datasetPath), zap.Int("rows", dataset.Len()))

	cleaner := pipeline.NewDataCleaner(len(dataset.FeatureNames), logger.Named("cleaner"))
	samples, issues := cleaner.Clean(pipeline.SamplesFromDataset(dataset))
	for _, issue := range issues {
		logger.Warn("row rejected", zap.Int("row", issue.Row), zap.String("rule", issue.Type), zap.String("reason", issue.Message))
	}
	if correct {
		n := pipeline.NewStatisticalCorrector(3).CorrectOutliers(samples)
		logger.Info("outliers corrected", zap.Int("values", n))
	}
	cleaned := pipeline.DatasetFromSamples(dataset.FeatureNames, samples)

	start := time.Now()
	artifact, err := ml.TrainArtifact(cleaned, config)
	if err != nil {
		return err
	}
	logger.Info("model trained",
		zap.String("type", artifact.Type),
		zap.Int("rows", cleaned.Len()),
		zap.Duration("took", time.Since(start)),
		zap.Float64("accuracy", artifact.Metrics.Accuracy),
		zap.Float64("precision", artifact.Metrics.Precision),
		zap.Float64("recall", artifact.Metrics.Recall))

	if err := artifact.Save(out); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	if err := recordTraining(cmd, artifact, out, cleaned.Len()); err != nil {
		logger.Warn("training log not written", zap.Error(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "model saved to %s (accuracy %.4f on %d held-out rows)\n",
		out, artifact.Metrics.Accuracy, artifact.Metrics.TestSamples)
	return nil
}

func recordTraining(cmd *cobra.Command, artifact *ml.Artifact, path string, rows int) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return nil
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveTrainingLog(context.Background(), db.TrainingLog{
		ModelName:  artifact.Name,
		ModelPath:  path,
		Accuracy:   artifact.Metrics.Accuracy,
		Precision:  artifact.Metrics.Precision,
		Recall:     artifact.Metrics.Recall,
		TrainedAt:  artifact.TrainedAt,
		DataPoints: rows,
	})
}
