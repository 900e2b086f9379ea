package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fintext/fatura/internal/community"
	"github.com/fintext/fatura/internal/model"
)

func templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage community bank templates",
		Long: `Submit, review and list community-contributed bank templates.

A template adds detection patterns and extraction patterns for a bank
the built-in parsers do not cover. Submissions start as pending and
only take effect once approved.`,
	}

	cmd.AddCommand(templatesSubmitCmd())
	cmd.AddCommand(templatesApproveCmd())
	cmd.AddCommand(templatesListCmd())

	return cmd
}

func templatesSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <template.json>",
		Short: "Submit a template for review",
		Long: `Submit a template described by a JSON file:

  {
    "bank_key": "banco_xyz",
    "bank_name": "Banco XYZ S.A.",
    "cnpj": "12.345.678/0001-90",
    "detection_patterns": ["banco xyz", "xyz pagamentos"],
    "extraction_patterns": {"valor_total": "total[:\\s]+r\\$\\s*([\\d.,]+)"},
    "author": "someone",
    "description": "Cartão XYZ statements"
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raw, err := os.ReadFile(args[0]) // #nosec G304 -- user-supplied template path
			if err != nil {
				return fmt.Errorf("failed to read template file: %w", err)
			}

			var sub community.Submission
			if err := json.Unmarshal(raw, &sub); err != nil {
				return fmt.Errorf("failed to parse template file: %w", err)
			}

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.templates.Submit(ctx, sub)
			if err != nil {
				return err
			}

			if !result.Accepted {
				fmt.Println("template rejected:")
				for _, reason := range result.Reasons {
					fmt.Printf("  - %s\n", reason)
				}
				os.Exit(1)
			}

			fmt.Printf("template accepted for review (hash %s)\n", result.Hash)
			return nil
		},
	}
}

func templatesApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <hash>",
		Short: "Approve a pending template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.templates.Approve(ctx, args[0], viper.GetString("templates.reviewer"))
			if err != nil {
				return err
			}

			if !result.Applied {
				fmt.Printf("template already %s (reviewer %s)\n", result.Status, result.Reviewer)
				return nil
			}
			fmt.Printf("template approved by %s and activated\n", result.Reviewer)
			return nil
		},
	}

	cmd.Flags().String("reviewer", "", "Reviewer name (required)")
	_ = cmd.MarkFlagRequired("reviewer")
	_ = viper.BindPFlag("templates.reviewer", cmd.Flags().Lookup("reviewer"))

	return cmd
}

func templatesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			status := model.TemplateStatus(viper.GetString("templates.status"))
			if status != model.TemplatePending && status != model.TemplateApproved {
				return fmt.Errorf("invalid status %q (want pending or approved)", status)
			}

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			templates, err := s.templates.List(ctx, status)
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				fmt.Printf("no %s templates\n", status)
				return nil
			}

			for _, t := range templates {
				fmt.Printf("%s  %-16s %-28s by %s (%s)\n",
					t.Hash[:12], t.BankKey, t.DisplayName, t.Author, t.SubmittedAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().String("status", "pending", "Status to list (pending, approved)")
	_ = viper.BindPFlag("templates.status", cmd.Flags().Lookup("status"))

	return cmd
}
