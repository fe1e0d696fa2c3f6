package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/persona-coach/internal/app"
	"github.com/dvloznov/persona-coach/internal/coach"
	"github.com/dvloznov/persona-coach/internal/config"
	"github.com/dvloznov/persona-coach/internal/gcs"
	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/dvloznov/persona-coach/internal/persona"
	"github.com/dvloznov/persona-coach/internal/rag"
	"github.com/rs/zerolog"
)

func main() {
	_ = config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewService("cli", cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "predict":
		runPredict(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "advise":
		runAdvise(cfg, log)
	case "chat":
		runChat(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Persona Coach CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  predict   Classify a transaction CSV into a spending persona")
	fmt.Println("  inspect   Print the cleaned rows and extracted features of a CSV")
	fmt.Println("  advise    Ask the financial coach about one purchase")
	fmt.Println("  chat      Ask the knowledge base a question")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func readTable(log zerolog.Logger, path string) *persona.Table {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open CSV")
	}
	defer f.Close()

	table, err := persona.ReadCSV(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read CSV")
	}
	return table
}

func runPredict(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	file := fs.String("file", "", "Path to the transaction CSV")
	model := fs.String("model", cfg.PersonaModelURI, "Persona model artifact: local path or gs://bucket/object")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	m, err := persona.LoadModel(ctx, gcs.NewGCSStorageService(), *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load persona model")
	}

	result, err := persona.NewPredictorFromModel(m).Predict(readTable(log, *file))
	if err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}

	fmt.Printf("Cluster: %d\nPersona: %s\n", result.Cluster, result.Persona)
}

func runInspect(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	file := fs.String("file", "", "Path to the transaction CSV")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	table := readTable(log, *file)
	set, err := persona.Clean(table)
	if err != nil {
		log.Fatal().Err(err).Msg("Validation failed")
	}

	first, last := set.Period()
	fmt.Println("\n=== Ledger ===")
	fmt.Printf("Rows read:  %d\n", len(table.Records))
	fmt.Printf("Rows kept:  %d\n", len(set))
	fmt.Printf("Period:     %s to %s\n", first.Format("2006-01-02"), last.Format("2006-01-02"))

	features := persona.Extract(set)
	values := features.Values()
	fmt.Println("\n=== Features ===")
	for i, name := range persona.FeatureNames() {
		fmt.Printf("%-26s %12.4f\n", name, values[i])
	}
	fmt.Println()
}

func runAdvise(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("advise", flag.ExitOnError)
	var req coach.AdviceRequest
	fs.StringVar(&req.Persona, "persona", "", "Spending persona")
	fs.Float64Var(&req.Amount, "amount", 0, "Purchase amount")
	fs.StringVar(&req.UserGoal, "goal", "", "Savings goal")
	fs.StringVar(&req.TransactionCategory, "category", "", "Transaction category (Survival, Growth, Joy, Impulse)")
	fs.Float64Var(&req.MonthlyBudget, "budget", 0, "Monthly budget")
	fs.Float64Var(&req.CurrentMonthlySpend, "spent", 0, "Spend so far this month")
	fs.StringVar(&cfg.AdviceProvider, "provider", cfg.AdviceProvider, "Advice provider: groq or gemini")
	fs.Parse(os.Args[2:])

	if req.Persona == "" || req.UserGoal == "" || req.TransactionCategory == "" {
		log.Fatal().Msg("Usage: cli advise -persona NAME -amount N -goal TEXT -category NAME [-budget N -spent N]")
	}
	cfg.AdviceProvider = strings.ToLower(cfg.AdviceProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	completer, err := app.NewAdviceCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create advice provider")
	}

	advice, err := coach.New(completer, log, nil).Advise(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Advice failed")
	}

	fmt.Println(advice)
}

func runChat(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	msg := fs.String("msg", "", "Question to ask")
	asJSON := fs.Bool("json", false, "Print the raw JSON answer")
	fs.Parse(os.Args[2:])

	if strings.TrimSpace(*msg) == "" {
		log.Fatal().Msg("Error: --msg is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := app.NewVectorStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open vector store")
	}
	defer store.Close()

	embedder, err := app.NewEmbedder(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedder")
	}
	defer embedder.Close()

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	chat := rag.NewChatService(rag.NewRetriever(embedder, store, cfg.RetrieverK), gemini, log)
	answer, err := chat.Ask(ctx, *msg)
	if err != nil {
		log.Fatal().Err(err).Msg("Chat failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(answer)
		return
	}

	fmt.Println(answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range answer.Sources {
			fmt.Printf("  - %s\n", s.Source)
		}
	}
}
