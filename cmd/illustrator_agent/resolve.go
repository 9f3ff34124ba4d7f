package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-illustrator/internal/resolver"
	"github.com/jonathan/course-illustrator/internal/types"
)

var (
	resolveConfigPath string
	resolveCourseID   string
	resolveLessonID   string
	resolveTitle      string
	resolveSubject    string
	resolveVerbose    bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an illustration for a single lesson",
	Long:  `Run one resolution end-to-end from the command line and print the selected image (or the rejection reason) as JSON.`,
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveConfigPath, "config", "", "Path to config.json file")
	resolveCmd.Flags().StringVar(&resolveCourseID, "course", "", "Course identifier (required)")
	resolveCmd.Flags().StringVar(&resolveLessonID, "lesson", "", "Lesson identifier (required)")
	resolveCmd.Flags().StringVar(&resolveTitle, "title", "", "Lesson title (required)")
	resolveCmd.Flags().StringVar(&resolveSubject, "subject", "", "Course subject (e.g. history, math)")
	resolveCmd.Flags().BoolVarP(&resolveVerbose, "verbose", "v", false, "Print detailed debug information")

	_ = resolveCmd.MarkFlagRequired("course")
	_ = resolveCmd.MarkFlagRequired("lesson")
	_ = resolveCmd.MarkFlagRequired("title")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(resolveConfigPath)
	if err != nil {
		return err
	}
	if resolveVerbose {
		cfg.Verbose = true
	}

	components, err := buildStack(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble components: %w", err)
	}
	defer components.stop()

	course := types.NewCourseContext(resolveCourseID, resolveLessonID, resolveTitle, resolveSubject)

	candidate, err := components.resolver.Resolve(ctx, course)
	if err != nil {
		if resolver.IsPolicyFailure(err) {
			// Not a failure of the tool: print the rejection and exit cleanly.
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"image":  nil,
				"reason": err.Error(),
			})
		}
		return fmt.Errorf("resolution failed: %w", err)
	}

	return json.NewEncoder(os.Stdout).Encode(map[string]any{"image": candidate})
}
