package cmd

import (
	"encoding/json"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/spigell/mentormatch/internal/inspect"
	"github.com/spigell/mentormatch/internal/similarity"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Print what a model artifact contains",
	Long: "Reports size, header bytes and detected kind of a word2vec or scoring artifact.\n" +
		"Without a path one of the configured artifacts can be picked interactively.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runInspect(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("format", "f", string(similarity.FormatAuto), "word2vec format: auto, text or binary")
	inspectCmd.Flags().Bool("as-json", false, "print the report as json")
}

func runInspect(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	asJSON, _ := cmd.Flags().GetBool("as-json")

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		config, err := getConfig()
		if err != nil {
			log.Fatalf("getting a config: %v", err)
		}

		prompt := promptui.Select{
			Label: "Artifact to inspect",
			Items: []string{config.similarity().Path, config.scoring().Path},
		}
		_, path, err = prompt.Run()
		if err != nil {
			log.Fatalf("selecting an artifact: %v", err)
		}
	}

	report := inspect.Inspect(path, similarity.Format(format))

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("writing the report: %v", err)
		}
		return
	}

	if err := report.Render(os.Stdout); err != nil {
		log.Fatalf("writing the report: %v", err)
	}
}
