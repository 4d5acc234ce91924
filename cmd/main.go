package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdftalk/internal/config"
	"pdftalk/internal/embedding"
	"pdftalk/internal/helper"
	"pdftalk/internal/index"
	"pdftalk/internal/index/chromemdb"
	"pdftalk/internal/index/pgvector"
	"pdftalk/internal/index/pinecone"
	"pdftalk/internal/llm"
	"pdftalk/internal/models"
	"pdftalk/internal/pipeline"
	"pdftalk/internal/rag"
	"pdftalk/internal/splitter"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	// best effort, secrets may come from the real environment
	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	query := flag.String("query", "", "Question to answer from the indexed documents")
	reset := flag.Bool("reset", false, "Delete the index and start over")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating index backend")
	}

	ctx := context.Background()

	if *reset {
		if err := store.Delete(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error deleting index")
		}
		log.Info().Str("index", cfg.Index.Name).Msg("Index deleted")
		return
	}

	if files := flag.Args(); len(files) > 0 {
		ingestFiles(ctx, cfg, store, files)
		return
	}

	if *query != "" {
		answerQuery(ctx, cfg, store, *query)
		return
	}

	log.Fatal().Msg("Provide document files to ingest, a -query to answer, or -reset")
}

func buildStore(cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Backend {
	case "chromem":
		return chromemdb.New(cfg.Index.Path, cfg.Index.Name)
	case "pinecone":
		return pinecone.New(pinecone.Config{
			APIKey:           os.Getenv(cfg.Index.APIKeyEnv),
			Name:             cfg.Index.Name,
			Cloud:            cfg.Index.Cloud,
			Region:           cfg.Index.Region,
			ControllerURL:    cfg.Index.ControllerURL,
			PollInterval:     cfg.Index.PollInterval(),
			ProvisionTimeout: cfg.Index.ProvisionTimeout(),
		}), nil
	case "pgvector":
		db := pgvector.Connect(cfg.Index.DSN, cfg.Index.Debug)
		return pgvector.New(db, cfg.Index.Name), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
}

func ingestFiles(ctx context.Context, cfg *config.Config, store index.Store, paths []string) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding, cfg.Index.Dimension)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	var files []models.File
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Str("file", path).Err(err).Msg("Error reading file")
		}
		files = append(files, models.File{Name: filepath.Base(path), Data: data})
	}

	p := pipeline.New(
		splitter.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		index.NewIndexer(store, embedder),
		store,
		cfg.Index.Dimension,
		cfg.Index.Metric,
		cfg.RAG.BatchSize,
	)

	results, err := p.Ingest(ctx, files)
	helper.PrettyPrint(results)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting documents")
	}
}

func answerQuery(ctx context.Context, cfg *config.Config, store index.Store, query string) {
	exists, err := store.Exists(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error checking index")
	}
	if !exists {
		log.Fatal().Msg("No documents have been ingested yet")
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding, cfg.Index.Dimension)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	completer, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	r := rag.NewRAG(store, embedder, completer, cfg.RAG.TopK)
	response, err := r.Answer(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, source := range response.Sources {
		fmt.Printf("%s (page %d)\n", source.Metadata.PDFName, source.Metadata.Page)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}
