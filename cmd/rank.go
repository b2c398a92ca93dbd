package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank mentors for a student read from a JSON request",
	Long: "Reads {\"student\": ..., \"mentors\": [...]} from --input or stdin and prints the\n" +
		"ranked mentors as JSON. Logs go to stderr.",
	Run: func(cmd *cobra.Command, _ []string) {
		input, _ := cmd.Flags().GetString("input")
		os.Exit(rank(input, os.Stdin, os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("input", "i", "", "request file (default is stdin)")
}

// rank returns the process exit code.
func rank(input string, stdin io.Reader, stdout io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger("stderr")
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Error("getting a config", zap.Error(err))
		return 1
	}

	stack, err := buildRanking(config, logger, nil)
	if err != nil {
		return writeRankError(stdout, logger, err)
	}

	r := stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return writeRankError(stdout, logger, fmt.Errorf("open input: %w", err))
		}
		defer f.Close()
		r = f
	}

	req, err := ranking.DecodeRequest(r)
	if err != nil {
		return writeRankError(stdout, logger, err)
	}

	result, err := stack.service.Handle(ctx, req)
	if err != nil {
		return writeRankError(stdout, logger, err)
	}

	if err := writeJSON(stdout, result); err != nil {
		logger.Error("writing the result", zap.Error(err))
		return 1
	}
	return 0
}

func writeRankError(w io.Writer, logger *zap.Logger, err error) int {
	logger.Error("ranking failed", zap.Error(err))
	if werr := writeJSON(w, map[string]string{"error": err.Error()}); werr != nil {
		logger.Error("writing the error", zap.Error(werr))
	}
	return 1
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
