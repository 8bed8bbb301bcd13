package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
)

var eventFile string

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Dispatch one event read from a JSON file",
	Long: "Read an event (direct query, proxied HTTP request, object-created records, schedule " +
		"trigger or task) and print the dispatcher's response. Use - to read stdin.",
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVarP(&eventFile, "event", "e", "", "Event JSON file, or - for stdin (required)")
	_ = invokeCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(invokeCmd)
}

// readEvent decodes an event object. An empty document is an empty event.
func readEvent(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	event := map[string]any{}
	if len(data) == 0 {
		return event, nil
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	if event == nil {
		event = map[string]any{}
	}
	return event, nil
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	in := io.Reader(os.Stdin)
	if eventFile != "-" {
		f, err := os.Open(eventFile)
		if err != nil {
			return fmt.Errorf("failed to open event file: %w", err)
		}
		defer f.Close()
		in = f
	}
	event, err := readEvent(in)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	resp := dispatch.New(a.svc).Handle(cmd.Context(), event)
	if err := printJSON(os.Stdout, resp); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("event failed with status %d", resp.StatusCode)
	}
	return nil
}
