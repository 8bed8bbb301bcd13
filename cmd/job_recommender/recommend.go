package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
)

var (
	recommendCandidate string
	recommendLimit     int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend jobs for an indexed candidate",
	RunE:  runRecommend,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report index health and document counts",
	RunE:  runStatus,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendCandidate, "candidate", "", "Candidate ID (required)")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 10, "Maximum recommendations (at most 50)")
	_ = recommendCmd.MarkFlagRequired("candidate")

	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(statusCmd)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return printResponse(os.Stdout, a.svc.Recommend(cmd.Context(), dispatch.RecommendRequest{
		CandidateID: recommendCandidate,
		Limit:       recommendLimit,
	}))
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return printResponse(os.Stdout, a.svc.Status(cmd.Context()))
}
