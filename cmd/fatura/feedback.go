package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Manage detection feedback",
		Long: `Record corrections for wrong or missed bank detections and inspect
the accumulated feedback. Corrections feed the training of the
detection assistant (see "fatura train").`,
	}

	cmd.AddCommand(feedbackSubmitCmd())
	cmd.AddCommand(feedbackStatsCmd())
	cmd.AddCommand(feedbackProblemsCmd())
	cmd.AddCommand(feedbackExportCmd())

	return cmd
}

func feedbackSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Record a correction for a document",
		Long: `Record the correct bank for a document the detector got wrong.

Examples:
  fatura feedback submit --correct nubank --detected itau --confidence 0.4 invoice.txt
  pdftotext doc.pdf - | fatura feedback submit --correct inter`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFeedbackSubmit,
	}

	cmd.Flags().String("correct", "", "Correct bank key (required)")
	cmd.Flags().String("detected", "", "Bank key the detector reported (empty if none)")
	cmd.Flags().Float64("confidence", 0, "Confidence the detector reported")
	_ = cmd.MarkFlagRequired("correct")

	_ = viper.BindPFlag("feedback.correct", cmd.Flags().Lookup("correct"))
	_ = viper.BindPFlag("feedback.detected", cmd.Flags().Lookup("detected"))
	_ = viper.BindPFlag("feedback.confidence", cmd.Flags().Lookup("confidence"))

	return cmd
}

func runFeedbackSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	text, err := readInput(path)
	if err != nil {
		return err
	}

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.feedback.Submit(ctx,
		viper.GetString("feedback.detected"),
		viper.GetString("feedback.correct"),
		text,
		viper.GetFloat64("feedback.confidence"),
		nil,
	)
	if err != nil {
		return err
	}

	fmt.Printf("feedback recorded (id %d)\n", id)
	return nil
}

func feedbackStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show feedback volume per bank",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.feedback.StatsByBank(ctx)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("no feedback recorded yet")
				return nil
			}

			banks := make([]string, 0, len(stats))
			for bank := range stats {
				banks = append(banks, bank)
			}
			sort.Strings(banks)

			for _, bank := range banks {
				st := stats[bank]
				fmt.Printf("%-16s %5d corrections  avg confidence %.2f\n", bank, st.Count, st.AvgConfidence)
			}
			return nil
		},
	}
}

func feedbackProblemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "problems",
		Short: "Show low-confidence corrections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			maxConf := viper.GetFloat64("feedback.max_confidence")
			records, err := s.feedback.ProblematicCases(ctx, maxConf)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no problematic cases")
				return nil
			}

			for _, r := range records {
				fmt.Printf("#%d detected=%q correct=%q confidence=%.2f\n",
					r.ID, r.DetectedBank, r.CorrectBank, r.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().Float64("max-confidence", 0.5, "Only show corrections below this confidence")
	_ = viper.BindPFlag("feedback.max_confidence", cmd.Flags().Lookup("max-confidence"))

	return cmd
}

func feedbackExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export feedback as JSON training samples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			samples, err := s.feedback.ExportTrainingData(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(samples)
		},
	}
}
