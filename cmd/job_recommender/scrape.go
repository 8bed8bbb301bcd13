package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
)

var (
	scrapeSmall bool
	scrapeMax   int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape job listings and index them",
	Long:  "Fetch listings for each configured search term, embed them and index the job postings.",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeSmall, "small", false, "Run the small test batch")
	scrapeCmd.Flags().IntVar(&scrapeMax, "max", 0, "Maximum listings across all terms (default scraper.scheduled-max)")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	if scrapeSmall && scrapeMax > 0 {
		return fmt.Errorf("--small and --max are mutually exclusive")
	}
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	switch {
	case scrapeSmall:
		return printResponse(os.Stdout, a.svc.ManualTask(ctx, dispatch.TaskSmallScrape, nil))
	case scrapeMax > 0:
		if a.jobs == nil {
			return fmt.Errorf("job scraping %w", dispatch.ErrNotConfigured)
		}
		res, err := a.jobs.Run(ctx, scrapeMax)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	default:
		return printResponse(os.Stdout, a.svc.ScheduledScrape(ctx))
	}
}
