package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fintext/fatura/internal/common"
)

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Retrain the detection assistant from feedback",
		Long: `Retrain the detection assistant from all unprocessed feedback.

Banks need a minimum number of corrections before they are trained;
banks below the floor keep their previous weights and are reported.
The updated model is written to the configured model path.`,
		RunE: runTrain,
	}
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.pipeline.Train(ctx)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientData) {
			fmt.Println("not enough feedback to train any bank:")
			printInsufficient(result.Insufficient)
			return nil
		}
		return err
	}

	if err := s.assistant.Save(s.settings.ModelPath); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	fmt.Printf("trained %d banks from %d samples\n", len(result.TrainedBanks), result.SamplesUsed)
	for _, bank := range result.TrainedBanks {
		fmt.Printf("  + %s\n", bank)
	}
	if len(result.Insufficient) > 0 {
		fmt.Println("skipped (below the sample floor):")
		printInsufficient(result.Insufficient)
	}
	fmt.Printf("model written to %s\n", s.settings.ModelPath)
	return nil
}

func printInsufficient(insufficient map[string]int) {
	banks := make([]string, 0, len(insufficient))
	for bank := range insufficient {
		banks = append(banks, bank)
	}
	sort.Strings(banks)
	for _, bank := range banks {
		fmt.Printf("  - %s (%d samples)\n", bank, insufficient[bank])
	}
}
