package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobarin/viralforge/internal/discussion"
	"github.com/bobarin/viralforge/internal/services"
)

var discussCmd = &cobra.Command{
	Use:   "discuss <topic>",
	Short: "Record a panel discussion about a topic",
	Long: `Three panel members discuss the topic: opening statements, rounds of
responses to the previous speaker, then final thoughts. The markdown
transcript is written to the output directory and, unless --no-voice is
set, every line is voiced and saved next to it.

With --takes each panel member gives one quick take instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiscuss,
}

var discussFlags = []string{"rounds", "takes", "no-voice", "output"}

func init() {
	f := discussCmd.Flags()
	f.Int("rounds", 0, "discussion rounds before the final thoughts (default from DISCUSSION_ROUNDS)")
	f.Bool("takes", false, "one quick take per panel member instead of a discussion")
	f.Bool("no-voice", false, "skip speech synthesis")
	f.StringP("output", "o", "", "output directory (default from OUTPUT_DIR)")
	for _, name := range discussFlags {
		_ = viper.BindPFlag("discuss."+name, f.Lookup(name))
	}
	rootCmd.AddCommand(discussCmd)
}

func runDiscuss(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outDir := cfg.Pipeline.OutputDir
	if out := viper.GetString("discuss.output"); out != "" {
		outDir = out
	}
	rounds := viper.GetInt("discuss.rounds")
	if rounds < 1 {
		rounds = cfg.Pipeline.DiscussionRounds
	}

	var completer discussion.Completer
	if svc := services.NewOpenAIService(cfg.Reasoning); !svc.MockMode() {
		completer = svc
	}
	var voicer discussion.Voicer
	if !viper.GetBool("discuss.no-voice") {
		voicer = services.NewElevenLabsService(cfg.Speech)
	}
	host := discussion.NewHost(discussion.DefaultPanel(), completer, voicer)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := strings.Join(args, " ")
	var d *discussion.Discussion
	if viper.GetBool("discuss.takes") {
		d, err = host.QuickTakes(ctx, topic)
	} else {
		d, err = host.Run(ctx, topic, rounds)
	}
	if err != nil {
		return fmt.Errorf("discussion failed: %w", err)
	}

	fs := afero.NewOsFs()
	transcript := discussion.TranscriptPath(outDir, d.Topic)
	if err := discussion.SaveTranscript(fs, d, transcript); err != nil {
		return err
	}
	audioDir := strings.TrimSuffix(transcript, filepath.Ext(transcript)) + "_audio"
	audio, err := discussion.SaveAudio(fs, d, audioDir)
	if err != nil {
		return err
	}

	res := discussResult{Discussion: *d, Transcript: transcript, AudioFiles: audio}
	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), res, res.render)
}

type discussResult struct {
	discussion.Discussion `yaml:",inline"`
	Transcript            string   `json:"transcript" yaml:"transcript"`
	AudioFiles            []string `json:"audio_files,omitempty" yaml:"audio_files,omitempty"`
}

func (r discussResult) render(w io.Writer) error {
	heading := "viralforge discussion"
	if r.QuickTakes() {
		heading = "viralforge quick takes"
	}
	lines := []string{
		titleStyle.Render(heading),
		field("Topic", r.Topic),
		field("Entries", len(r.Entries)),
		field("Transcript", r.Transcript),
		field("Audio files", len(r.AudioFiles)),
		"",
	}
	for _, e := range r.Entries {
		lines = append(lines, outcomeStyle(e.Outcome).Render(e.Title)+": "+e.Text)
	}
	_, err := fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}
