package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aind/wandb-results/internal/wandb"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Inspect and download run artifacts",
}

var artifactListCmd = &cobra.Command{
	Use:   "list <run-id>",
	Short: "List artifacts logged by a run",
	Args:  cobra.ExactArgs(1),
	RunE:  artifactList,
}

var artifactDownloadCmd = &cobra.Command{
	Use:   "download <run-id> [<run-id>...]",
	Short: "Download run artifacts",
	Long: `Download the artifacts logged by one or more runs. Files land under
<output-dir>/<project>/<run-id>/<artifact-name>/ and files already present
with matching size and checksum are not transferred again.

With multiple run ids the downloads fan out concurrently; one run's failure
is reported for that run alone and does not stop the others.`,
	Example: `  # Everything the run's training-output artifacts contain
  wandb-results artifact download abc123

  # A single file from several runs
  wandb-results artifact download abc123 def456 --file params.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: artifactDownload,
}

func init() {
	rootCmd.AddCommand(artifactCmd)
	artifactCmd.AddCommand(artifactListCmd)
	artifactCmd.AddCommand(artifactDownloadCmd)

	// List command flags
	artifactListCmd.Flags().String("type", "", "Artifact type filter (default: all types)")
	artifactListCmd.Flags().Bool("files", false, "Also list each artifact's files")

	// Download command flags
	artifactDownloadCmd.Flags().String("type", "", "Artifact type filter (default from config)")
	artifactDownloadCmd.Flags().StringArray("file", []string{}, "File name to download (can be specified multiple times; default all)")
	artifactDownloadCmd.Flags().String("output-dir", "artifacts", "Directory to download into")
	artifactDownloadCmd.Flags().Int("concurrency", 0, "Concurrent run downloads (default from config)")
}

func artifactList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	artifactType, _ := cmd.Flags().GetString("type")
	withFiles, _ := cmd.Flags().GetBool("files")

	ctx := context.Background()
	artifacts, err := client.Artifacts(ctx, args[0], wandb.ArtifactOptions{Type: artifactType})
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	if len(artifacts) == 0 {
		fmt.Println("No artifacts logged")
		return nil
	}

	for _, artifact := range artifacts {
		fmt.Printf("%s:%s\ttype=%s\n", artifact.Info.Name, artifact.Info.Version, artifact.Info.Type)
		if !withFiles {
			continue
		}
		files, err := artifact.Files(ctx)
		if err != nil {
			return fmt.Errorf("failed to list files of %s: %w", artifact.Info.Name, err)
		}
		for _, f := range files {
			if f.Size != nil {
				fmt.Printf("  %s\t%d bytes\n", f.Name, *f.Size)
			} else {
				fmt.Printf("  %s\n", f.Name)
			}
		}
	}
	return nil
}

func artifactDownload(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	artifactType, _ := cmd.Flags().GetString("type")
	files, _ := cmd.Flags().GetStringArray("file")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	opts := wandb.DownloadOptions{
		Type:        artifactType,
		Files:       files,
		OutputDir:   outputDir,
		Concurrency: concurrency,
	}

	ctx := context.Background()
	outcomes := client.DownloadArtifacts(ctx, args, opts)

	runIDs := make([]string, 0, len(outcomes))
	for runID := range outcomes {
		runIDs = append(runIDs, runID)
	}
	sort.Strings(runIDs)

	failures := 0
	for _, runID := range runIDs {
		outcome := outcomes[runID]
		for _, result := range outcome.Results {
			fmt.Printf("%s: %s -> %s (%d files)\n", runID, result.Artifact.Name, result.Dir, len(result.Files))
		}
		if outcome.Err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "%s: %v\n", runID, outcome.Err)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed to download", failures, len(args))
	}
	return nil
}
