package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the extraction cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			stats := s.cache.Stats()
			fmt.Printf("enabled:    %v\n", stats.Enabled)
			fmt.Printf("detections: %d\n", stats.DetectionEntries)
			fmt.Printf("parsers:    %d\n", stats.ParserEntries)
			fmt.Printf("hits:       %d\n", stats.Hits)
			fmt.Printf("misses:     %d\n", stats.Misses)
			fmt.Printf("hit rate:   %.1f%%\n", stats.HitRate*100)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			s.cache.Clear()
			fmt.Println("cache cleared")
			return nil
		},
	})

	return cmd
}
