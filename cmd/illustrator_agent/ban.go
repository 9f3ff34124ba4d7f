package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-illustrator/internal/ban"
)

var (
	banConfigPath string
	banExactURL   string
	banSubstring  string
	banCourseID   string
	banList       bool
)

var banCmd = &cobra.Command{
	Use:   "ban",
	Short: "Register a ban pattern or list existing ones",
	Long: `Register a durable ban pattern against image URLs, page URLs, and titles.
Patterns persist in the database when DATABASE_URL is configured; a running
server picks them up on restart. Use --list to print active patterns.`,
	RunE: runBan,
}

func init() {
	banCmd.Flags().StringVar(&banConfigPath, "config", "", "Path to config.json file")
	banCmd.Flags().StringVar(&banExactURL, "url", "", "Exact URL to ban")
	banCmd.Flags().StringVar(&banSubstring, "substring", "", "Case-insensitive substring to ban")
	banCmd.Flags().StringVar(&banCourseID, "course", "", "Scope the pattern to one course")
	banCmd.Flags().BoolVar(&banList, "list", false, "List active ban patterns instead of adding one")
	rootCmd.AddCommand(banCmd)
}

func runBan(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(banConfigPath)
	if err != nil {
		return err
	}

	components, err := buildStack(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble components: %w", err)
	}
	defer components.stop()

	if banList {
		patterns := components.bans.Patterns()
		if len(patterns) == 0 {
			fmt.Println("No active ban patterns")
			return nil
		}
		for _, p := range patterns {
			fmt.Printf("exact=%q substring=%q course=%q created=%s\n",
				p.ExactURL, p.Substring, p.CourseID, p.CreatedAt.Format("2006-01-02"))
		}
		return nil
	}

	if banExactURL == "" && banSubstring == "" {
		return fmt.Errorf("one of --url or --substring is required")
	}

	components.bans.Ban(ctx, ban.Pattern{
		ExactURL:  banExactURL,
		Substring: banSubstring,
		CourseID:  banCourseID,
	})
	fmt.Println("Ban pattern registered")
	return nil
}
