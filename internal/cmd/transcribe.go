package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobarin/viralforge/internal/services"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Print word-level timestamps of a voiceover",
	Long: `Transcribe an audio file with Whisper and print one line per word.

Without OPENAI_API_KEY the words of --hint are spaced evenly instead, which
is what caption burn-in uses in mock mode.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().String("language", "en", "spoken language (ISO-639-1)")
	transcribeCmd.Flags().String("hint", "", "expected text; improves recognition and drives mock mode")
	_ = viper.BindPFlag("transcribe.language", transcribeCmd.Flags().Lookup("language"))
	_ = viper.BindPFlag("transcribe.hint", transcribeCmd.Flags().Lookup("hint"))
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	audio, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	whisper := services.NewOpenAIService(cfg.Reasoning)
	words, err := whisper.Transcribe(cmd.Context(), audio, viper.GetString("transcribe.language"), viper.GetString("transcribe.hint"))
	if err != nil {
		return err
	}

	return writeFormatted(cmd.OutOrStdout(), viper.GetString("format"), words, func(w io.Writer) error {
		for _, word := range words {
			if _, err := fmt.Fprintf(w, "%s  %s\n", labelStyle.Render(fmt.Sprintf("%6.2f-%6.2f", word.Start, word.End)), word.Word); err != nil {
				return err
			}
		}
		return nil
	})
}
