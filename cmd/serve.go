package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/trill-go/pkg/memory"
	"github.com/theapemachine/trill-go/pkg/service"
	"github.com/theapemachine/trill-go/pkg/stores/qdrant"
	"github.com/theapemachine/trill-go/pkg/stores/redis"
	"github.com/theapemachine/trill-go/pkg/stores/s3"
	"github.com/theapemachine/trill-go/pkg/tools"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the trill memory service",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()

			if err != nil {
				return err
			}

			return svc.Start()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (overrides config)")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (overrides config)")
}

// buildService wires the collaborators out of config and assembles the
// protocol surface around them.
func buildService() (*service.MemoryService, error) {
	embedder := memory.NewOpenAIEmbedder(
		memory.WithModel(viper.GetString("embedding.model")),
	)

	index := qdrant.New(
		viper.GetString("stores.qdrant.endpoint"),
		viper.GetString("stores.qdrant.collection"),
	)

	if err := index.Ping(context.Background()); err != nil {
		log.Warn("qdrant unreachable at startup", "error", err)
	}

	if err := index.EnsureCollection(
		context.Background(), viper.GetInt("embedding.dimensions"),
	); err != nil {
		// Retried implicitly on the first upsert.
		log.Warn("failed to ensure qdrant collection", "error", err)
	}

	conn, err := s3.NewConn(s3.Config{
		Endpoint:  viper.GetString("stores.s3.endpoint"),
		AccessKey: viper.GetString("stores.s3.access_key"),
		SecretKey: viper.GetString("stores.s3.secret_key"),
		Bucket:    viper.GetString("stores.s3.bucket"),
		UseSSL:    viper.GetBool("stores.s3.use_ssl"),
	})

	if err != nil {
		return nil, err
	}

	cache := redis.NewCache(viper.GetString("stores.redis.addr"))

	if err := cache.Ping(context.Background()); err != nil {
		// Stats fall back to placeholders while the cache is down.
		log.Warn("redis unreachable at startup", "error", err)
	}

	writer := memory.NewWriter(
		embedder,
		index,
		memory.WithBlobStore(s3.NewStore(conn)),
		memory.WithStatsCache(cache),
		memory.WithProfile(fineProfile()),
	)

	retriever := memory.NewRetriever(embedder, index)
	assembler := memory.NewAssembler(retriever)
	toolset := tools.NewToolset(writer, retriever, assembler, cache)

	host := hostFlag

	if host == "" {
		host = viper.GetString("server.host")
	}

	port := portFlag

	if port == 0 {
		port = viper.GetInt("server.port")
	}

	return service.New(service.Config{
		Name:       projectName,
		Version:    version,
		Host:       host,
		Port:       port,
		Endpoint:   viper.GetString("server.endpoint"),
		CORSOrigin: viper.GetString("server.cors_origin"),
	}, toolset), nil
}

// fineProfile reads the protocol-side chunking profile, expressed in
// tokens, out of config.
func fineProfile() memory.ChunkProfile {
	profile := memory.FineProfile()

	if tokens := viper.GetInt("chunking.fine.max_tokens"); tokens > 0 {
		profile.MaxChars = tokens * memory.CharsPerToken
	}

	if tokens := viper.GetInt("chunking.fine.overlap_tokens"); tokens > 0 {
		profile.OverlapChars = tokens * memory.CharsPerToken
	}

	return profile
}

var longServe = `
Serve the trill memory service: JSON-RPC 2.0 over a single POST endpoint
carrying the search, get_grounding_context, ingest, store and stats tools,
plus a health endpoint.

Examples:
  # Serve on the configured host and port
  trill serve

  # Serve on port 8080
  trill serve --port 8080
`
