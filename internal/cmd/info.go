package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/services"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show which capabilities are live and the platform presets",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

type capabilityInfo struct {
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
	Live     bool   `json:"live" yaml:"live"`
	Enable   string `json:"enable,omitempty" yaml:"enable,omitempty"` // what turns the capability live
}

type infoReport struct {
	Capabilities []capabilityInfo          `json:"capabilities" yaml:"capabilities"`
	Platforms    []services.PlatformPreset `json:"platforms" yaml:"platforms"`
	OutputDir    string                    `json:"output_dir" yaml:"output_dir"`
	Platform     string                    `json:"default_platform" yaml:"default_platform"`
	Style        string                    `json:"default_style" yaml:"default_style"`
	Tone         string                    `json:"default_tone" yaml:"default_tone"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	report := buildInfo(cfg)
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), report, report.render)
}

func buildInfo(cfg *config.Config) infoReport {
	video := services.NewVideoGenerator(cfg.Video)
	speech := services.NewElevenLabsService(cfg.Speech)
	media := services.NewFFmpegService(cfg.Media)
	reasoning := services.NewOpenAIService(cfg.Reasoning)

	return infoReport{
		Capabilities: []capabilityInfo{
			{Name: "reasoning", Provider: "openai/" + reasoning.Model(), Live: !reasoning.MockMode(), Enable: "OPENAI_API_KEY"},
			{Name: "video", Provider: cfg.Video.Provider, Live: !video.MockMode(), Enable: cfg.Video.CredentialEnv()},
			{Name: "speech", Provider: "elevenlabs", Live: !speech.MockMode(), Enable: "ELEVENLABS_API_KEY"},
			{Name: "media", Provider: "ffmpeg", Live: !media.MockMode(), Enable: "FFMPEG_PATH or ffmpeg on PATH"},
			{Name: "storage", Provider: "supabase", Live: cfg.Storage.Enabled(), Enable: "SUPABASE_URL and SUPABASE_SERVICE_KEY"},
		},
		Platforms: services.PlatformPresets(),
		OutputDir: cfg.Pipeline.OutputDir,
		Platform:  cfg.Pipeline.Platform,
		Style:     cfg.Pipeline.Style,
		Tone:      cfg.Pipeline.Tone,
	}
}

func (r infoReport) render(w io.Writer) error {
	lines := []string{titleStyle.Render("Capabilities")}
	for _, c := range r.Capabilities {
		state := okStyle.Render("live")
		if !c.Live {
			state = mockStyle.Render("mock") + " (set " + c.Enable + ")"
		}
		lines = append(lines, field(c.Name, c.Provider+"  "+state))
	}

	lines = append(lines, "", titleStyle.Render("Platforms"))
	for _, p := range r.Platforms {
		lines = append(lines, field(p.Name, fmt.Sprintf("%s @ %dfps, %s, max %.0f MB", p.Resolution(), p.FPS, p.Bitrate, p.MaxSizeMB)))
	}

	lines = append(lines, "",
		field("Output dir", r.OutputDir),
		field("Defaults", fmt.Sprintf("%s / %s / %s", r.Platform, r.Style, r.Tone)),
	)
	_, err := fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}
