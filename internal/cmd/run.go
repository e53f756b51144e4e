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

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/production"
	"github.com/bobarin/viralforge/internal/services"
)

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Produce one video bundle",
	Long: `Run the full pipeline once for a topic and write the bundle to the
output directory.

Without a topic and without --brief the configured default topic is used.
A free-form --brief takes precedence over the topic in every prompt.`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

var runFlags = []string{"brief", "style", "tone", "platform", "output", "captions", "title-card", "music"}

func init() {
	f := runCmd.Flags()
	f.String("brief", "", "free-form brief (overrides the topic in prompts)")
	f.String("style", "", "visual style: cinematic, funny or hybrid")
	f.String("tone", "", "tone: chaotic or dramatic")
	f.String("platform", "", "target platform: tiktok, instagram_reels, youtube_shorts or twitter")
	f.StringP("output", "o", "", "output directory (default from OUTPUT_DIR)")
	f.Bool("captions", false, "burn captions derived from the voiceover into the video")
	f.Bool("title-card", false, "overlay the plan title during the hook window")
	f.String("music", "", "local audio file mixed under the final video (default from MUSIC_PATH)")
	for _, name := range runFlags {
		_ = viper.BindPFlag("run."+name, f.Lookup(name))
	}
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if out := viper.GetString("run.output"); out != "" {
		cfg.Pipeline.OutputDir = out
	}

	brief := models.Brief{
		Topic:        strings.TrimSpace(strings.Join(args, " ")),
		Custom:       viper.GetString("run.brief"),
		Style:        viper.GetString("run.style"),
		Tone:         viper.GetString("run.tone"),
		Platform:     strings.ToLower(viper.GetString("run.platform")),
		BurnCaptions: viper.GetBool("run.captions"),
		TitleCard:    viper.GetBool("run.title-card"),
		Music:        viper.GetString("run.music"),
	}
	if brief.Music != "" {
		if _, err := os.Stat(brief.Music); err != nil {
			return fmt.Errorf("music file: %w", err)
		}
	}
	if brief.Platform != "" && !services.KnownPlatform(brief.Platform) {
		return fmt.Errorf("unknown platform %q", brief.Platform)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bundle, dir, err := production.NewFromConfig(cfg).Run(ctx, brief)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	summary := summarizeRun(bundle, dir)
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), summary, summary.render)
}

type stageSummary struct {
	Name      string         `json:"name" yaml:"name"`
	Outcome   models.Outcome `json:"outcome" yaml:"outcome"`
	Validated bool           `json:"validated" yaml:"validated"`
}

type runSummary struct {
	RunID         string         `json:"run_id" yaml:"run_id"`
	Topic         string         `json:"topic,omitempty" yaml:"topic,omitempty"`
	Brief         string         `json:"brief,omitempty" yaml:"brief,omitempty"`
	Directory     string         `json:"directory" yaml:"directory"`
	PlanValidated bool           `json:"plan_validated" yaml:"plan_validated"`
	Stages        []stageSummary `json:"stages" yaml:"stages"`
	Videos        int            `json:"videos" yaml:"videos"`
	VideosOK      int            `json:"videos_ok" yaml:"videos_ok"`
	Voiceovers    int            `json:"voiceovers" yaml:"voiceovers"`
	SoundEffects  int            `json:"sound_effects" yaml:"sound_effects"`
	FinalOutput   string         `json:"final_output,omitempty" yaml:"final_output,omitempty"`
	FinalStatus   models.Status  `json:"final_status,omitempty" yaml:"final_status,omitempty"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
}

func summarizeRun(bundle *models.OutputBundle, dir string) runSummary {
	assets := bundle.GeneratedAssets
	s := runSummary{
		RunID:         bundle.RunID,
		Topic:         bundle.Topic,
		Brief:         bundle.Brief,
		Directory:     dir,
		PlanValidated: bundle.PlanValidated,
		Videos:        len(assets.Videos),
		Error:         bundle.Error,
	}
	for _, st := range bundle.Stages {
		s.Stages = append(s.Stages, stageSummary{Name: st.Name, Outcome: st.Outcome, Validated: st.Validated})
	}
	for _, v := range assets.Videos {
		if v.OK() {
			s.VideosOK++
		}
	}
	if assets.Audio != nil {
		s.Voiceovers = len(assets.Audio.VoiceoverTracks)
		s.SoundEffects = len(assets.Audio.SoundEffects)
	}
	if fo := assets.FinalOutput; fo != nil {
		s.FinalOutput = fo.Artifact
		s.FinalStatus = fo.Status
	}
	return s
}

func (s runSummary) render(w io.Writer) error {
	subject := s.Topic
	if s.Brief != "" {
		subject = s.Brief
	}

	lines := []string{
		titleStyle.Render("viralforge run " + s.RunID),
		field("Subject", subject),
		field("Directory", s.Directory),
		field("Plan validated", s.PlanValidated),
		"",
	}
	for _, st := range s.Stages {
		lines = append(lines, field(st.Name, outcomeStyle(st.Outcome).Render(string(st.Outcome))))
	}
	lines = append(lines, "",
		field("Videos", fmt.Sprintf("%d/%d usable", s.VideosOK, s.Videos)),
		field("Voiceovers", s.Voiceovers),
		field("Sound effects", s.SoundEffects),
	)
	switch {
	case s.FinalStatus != "":
		lines = append(lines, field("Final output", statusStyle(s.FinalStatus).Render(string(s.FinalStatus))+" "+s.FinalOutput))
	default:
		lines = append(lines, field("Final output", errStyle.Render("not produced")))
	}
	if s.Error != "" {
		lines = append(lines, "", errStyle.Render("Partial generation: "+s.Error))
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}
