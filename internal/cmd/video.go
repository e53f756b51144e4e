package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/services"
)

var statusCmd = &cobra.Command{
	Use:   "status <generation-id>",
	Short: "Look up an asynchronous video generation",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var downloadCmd = &cobra.Command{
	Use:   "download <ref> <path>",
	Short: "Materialize a generated video at a local path",
	Long: `Download the video behind a generation reference (URL, provider file
reference or cached path) to a local file. Mock references produce a small
placeholder file.`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(downloadCmd)
}

func videoClient() (services.VideoGenerator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return services.NewVideoGenerator(cfg.Video), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	video, err := videoClient()
	if err != nil {
		return err
	}

	rec := video.Status(cmd.Context(), args[0])
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), rec, func(w io.Writer) error {
		return renderStatus(w, rec)
	})
}

func renderStatus(w io.Writer, rec models.StatusRecord) error {
	state := okStyle.Render(rec.Status)
	switch rec.Status {
	case "failed", "error":
		state = errStyle.Render(rec.Status)
	case "pending", "processing":
		state = mockStyle.Render(rec.Status)
	}

	lines := []string{
		titleStyle.Render("Generation " + rec.GenerationID),
		field("Status", state),
		field("Progress", fmt.Sprintf("%d%%", rec.Progress)),
	}
	if rec.EstimatedTimeRemaining > 0 {
		lines = append(lines, field("Remaining", fmt.Sprintf("~%ds", rec.EstimatedTimeRemaining)))
	}
	if rec.Artifact != "" {
		lines = append(lines, field("Artifact", rec.Artifact))
	}
	if rec.MockMode {
		lines = append(lines, mockStyle.Render("mock mode: no provider credential configured"))
	}
	if rec.Error != "" {
		lines = append(lines, errStyle.Render(rec.Error))
	}
	_, err := fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}

func runDownload(cmd *cobra.Command, args []string) error {
	video, err := videoClient()
	if err != nil {
		return err
	}

	ref, path := args[0], args[1]
	if !video.Download(cmd.Context(), ref, path) {
		return fmt.Errorf("could not download %s", ref)
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("saved")+" "+path)
	return nil
}
