package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
)

var ingestLocation string

var ingestCVCmd = &cobra.Command{
	Use:   "ingest-cv",
	Short: "Ingest one stored résumé text",
	Long:  "Read extracted résumé text from the configured storage, embed it and index the candidate profile.",
	RunE:  runIngestCV,
}

var processPendingCmd = &cobra.Command{
	Use:   "process-pending",
	Short: "Ingest every stored résumé matching the pending glob",
	RunE:  runProcessPending,
}

func init() {
	ingestCVCmd.Flags().StringVarP(&ingestLocation, "location", "l", "", "Storage location of the résumé text (required)")
	_ = ingestCVCmd.MarkFlagRequired("location")

	rootCmd.AddCommand(ingestCVCmd)
	rootCmd.AddCommand(processPendingCmd)
}

func runIngestCV(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return printResponse(os.Stdout, a.svc.Ingest(cmd.Context(), dispatch.IngestRequest{Location: ingestLocation}))
}

func runProcessPending(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return printResponse(os.Stdout, a.svc.ManualTask(cmd.Context(), dispatch.TaskProcessPending, nil))
}
