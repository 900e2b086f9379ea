package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fintext/fatura/internal/dates"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract structured data from a document",
		Long: `Extract structured financial data from document text.

Reads the document from the given file, or from stdin when no file
(or "-") is given. The output is a JSON report with the detected bank,
the parser used and the extracted fields.

Examples:
  fatura extract invoice.txt
  pdftotext fatura.pdf - | fatura extract
  fatura extract --year 2024 statement.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().IntP("year", "y", 0, "Reference year for dates without one (0 = infer from the document)")
	cmd.Flags().Bool("pretty", true, "Indent the JSON output")

	_ = viper.BindPFlag("extract.year", cmd.Flags().Lookup("year"))
	_ = viper.BindPFlag("extract.pretty", cmd.Flags().Lookup("pretty"))

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
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

	refYear := viper.GetInt("extract.year")
	if refYear == 0 {
		refYear = dates.InferYear(text)
	}
	if refYear == 0 {
		refYear = time.Now().Year()
	}

	result, err := s.pipeline.Extract(ctx, text, refYear)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if viper.GetBool("extract.pretty") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect the issuing bank of a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			text, err := readInput(path)
			if err != nil {
				return err
			}

			s, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			det := s.detector.Detect(text)
			if det.BankKey == "" {
				fmt.Printf("no bank detected (best score %.2f)\n", det.Confidence)
				return nil
			}
			fmt.Printf("%s (%s) confidence=%.2f source=%s\n",
				det.DisplayName, det.BankKey, det.Confidence, det.Source)
			return nil
		},
	}
	return cmd
}
