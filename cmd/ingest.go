package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/trill-go/pkg/ingest"
	"github.com/theapemachine/trill-go/pkg/jsonrpc"
	"github.com/theapemachine/trill-go/pkg/memory"
)

var (
	fileFlag     string
	dirFlag      string
	entityFlag   string
	typeFlag     string
	platformFlag string
	urlFlag      string

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Bulk-ingest documents and chat exports into the memory service",
		Long:  longIngest,
		RunE: func(cmd *cobra.Command, args []string) error {
			if entityFlag == "" {
				return errors.New("--entity is required")
			}

			path := fileFlag

			if path == "" {
				path = dirFlag
			}

			if path == "" {
				return errors.New("either --file or --dir is required")
			}

			if !memory.MemoryType(typeFlag).IsValid() {
				return fmt.Errorf("invalid memory type %q", typeFlag)
			}

			url := urlFlag

			if url == "" {
				url = viper.GetString("client.url")
			}

			driver := ingest.NewDriver(
				jsonrpc.NewRPCClient(url),
				entityFlag,
				ingest.WithPlatform(platformFlag),
				ingest.WithMemoryType(typeFlag),
				ingest.WithExtensions(viper.GetStringSlice("ingest.extensions")),
				ingest.WithProfile(coarseProfile()),
			)

			report, err := driver.Run(cmd.Context(), path)

			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(report)
		},
	}
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&fileFlag, "file", "", "Path to a single file to ingest")
	ingestCmd.Flags().StringVar(&dirFlag, "dir", "", "Path to a directory to ingest recursively")
	ingestCmd.Flags().StringVar(&entityFlag, "entity", "", "Entity the memories belong to (required)")
	ingestCmd.Flags().StringVar(&typeFlag, "type", string(memory.TypeConversation), "Memory type for the ingested content")
	ingestCmd.Flags().StringVar(&platformFlag, "platform", "file", "Source platform recorded on each unit")
	ingestCmd.Flags().StringVar(&urlFlag, "url", "", "Memory service endpoint (overrides config)")
}

// coarseProfile reads the bulk-ingestion chunking profile, expressed in
// characters, out of config.
func coarseProfile() memory.ChunkProfile {
	profile := memory.CoarseProfile()

	if chars := viper.GetInt("chunking.coarse.max_chars"); chars > 0 {
		profile.MaxChars = chars
	}

	if chars := viper.GetInt("chunking.coarse.overlap_chars"); chars > 0 {
		profile.OverlapChars = chars
	}

	return profile
}

var longIngest = `
Bulk-ingest files into the memory service.

Plain text and markdown files are chunked as whole documents; JSON files
are classified by shape (chat exports, conversation lists, bare arrays)
and split into per-message or per-conversation memories with matching
provenance metadata.

Examples:
  # Ingest one chat export for alice
  trill ingest --file export.json --entity alice --platform claude

  # Ingest a notes directory
  trill ingest --dir ./notes --entity alice --type note
`
