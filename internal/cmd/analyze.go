package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/pipeline"
	"github.com/bobarin/viralforge/internal/services"
)

// maxListedTopics caps how many trend topics the text view prints.
const maxListedTopics = 5

var trendCmd = &cobra.Command{
	Use:   "trend [topic]",
	Short: "Analyse trends and pitch a concept without producing video",
	Long: `Run the trend, concept and optimization stages for a topic. Without a
topic whatever is currently trending is analysed.`,
	Args: cobra.ArbitraryArgs,
	RunE: runTrend,
}

var campaignCmd = &cobra.Command{
	Use:   "campaign <product>",
	Short: "Plan a trend-led campaign for a product",
	Long: `Search trends for cultural hooks relevant to the product, write a
campaign concept from the strongest one and package it for a platform.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCampaign,
}

func init() {
	for _, c := range []*cobra.Command{trendCmd, campaignCmd} {
		f := c.Flags()
		f.String("platform", "", "target platform: tiktok, instagram_reels, youtube_shorts or twitter")
		f.String("tone", "", "tone: chaotic or dramatic")
		_ = viper.BindPFlag(c.Name()+".platform", f.Lookup("platform"))
		_ = viper.BindPFlag(c.Name()+".tone", f.Lookup("tone"))
		rootCmd.AddCommand(c)
	}
}

func analysisBrief(cfg *config.Config, name string) (models.Brief, error) {
	brief := models.Brief{
		Style:    cfg.Pipeline.Style,
		Tone:     cfg.Pipeline.Tone,
		Platform: cfg.Pipeline.Platform,
	}
	if tone := viper.GetString(name + ".tone"); tone != "" {
		brief.Tone = tone
	}
	if platform := strings.ToLower(viper.GetString(name + ".platform")); platform != "" {
		if !services.KnownPlatform(platform) {
			return brief, fmt.Errorf("unknown platform %q", platform)
		}
		brief.Platform = platform
	}
	return brief, nil
}

func analysisPipeline(cfg *config.Config) *pipeline.Pipeline {
	return pipeline.NewAnalysis(pipeline.NewReasoner(services.NewOpenAIService(cfg.Reasoning), cfg.Reasoning.Strict))
}

func runTrend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	brief, err := analysisBrief(cfg, "trend")
	if err != nil {
		return err
	}
	brief.Topic = strings.TrimSpace(strings.Join(args, " "))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := analysisPipeline(cfg).AnalyzeTrend(ctx, brief)
	if err != nil {
		return fmt.Errorf("trend analysis failed: %w", err)
	}
	view := analysisView{Analysis: a, heading: "viralforge trend analysis"}
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), a, view.render)
}

func runCampaign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	brief, err := analysisBrief(cfg, "campaign")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := analysisPipeline(cfg).Campaign(ctx, strings.Join(args, " "), brief)
	if err != nil {
		return fmt.Errorf("campaign failed: %w", err)
	}
	view := analysisView{Analysis: a, heading: "viralforge campaign: " + a.Product}
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), a, view.render)
}

type analysisView struct {
	*pipeline.Analysis
	heading string
}

func (v analysisView) render(w io.Writer) error {
	lines := []string{
		titleStyle.Render(v.heading),
		field("Subject", v.Subject),
		field("Validated", v.Validated()),
		"",
	}
	for _, st := range v.Stages {
		lines = append(lines, field(st.Name, outcomeStyle(st.Outcome).Render(string(st.Outcome))))
	}

	if t := v.Trends; t != nil && len(t.ViralTopics) > 0 {
		lines = append(lines, "", titleStyle.Render("Trends"))
		for i, topic := range t.ViralTopics {
			if i == maxListedTopics {
				break
			}
			line := "• " + topic.Topic
			if topic.MemePotential != "" {
				line += " (" + topic.MemePotential + ")"
			}
			lines = append(lines, line)
		}
	}
	if c := v.Concept; c != nil {
		lines = append(lines, "", titleStyle.Render("Concept"),
			field("Title", c.Title),
			field("Hook", c.Hook),
			field("Mechanism", c.ViralMechanism),
		)
	} else {
		lines = append(lines, "", errStyle.Render("Concept did not decode, see --format json for the raw reply"))
	}
	if o := v.Optimization; o != nil {
		lines = append(lines, "", titleStyle.Render("Distribution"),
			field("Platform", o.Platform),
			field("Captions", o.Captions),
			field("Hashtags", strings.Join(o.Hashtags, " ")),
		)
		if len(o.PostingWindows) > 0 {
			lines = append(lines, field("Post at", strings.Join(o.PostingWindows, ", ")))
		}
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}
