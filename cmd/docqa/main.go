package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docqa/internal/chat"
	"docqa/internal/config"
	"docqa/internal/console"
	"docqa/internal/logger"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath        string
		plain          bool
		fromCheckpoint bool
		skipUpload     bool
		ingestOnly     bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/docqa/config.yaml)")
	flag.BoolVar(&plain, "plain", false, "Use a line-based prompt instead of the terminal UI")
	flag.BoolVar(&fromCheckpoint, "from-checkpoint", false, "Upload the saved checkpoint instead of extracting label files")
	flag.BoolVar(&skipUpload, "skip-upload", false, "Extract and embed, write the checkpoint, but do not write the search index")
	flag.BoolVar(&ingestOnly, "ingest-only", false, "Exit after ingestion without starting the query loop")
	flag.Parse()

	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	useTUI := !plain && !ingestOnly
	logOutput := cfg.Log.Output
	if useTUI {
		logOutput = cfg.Log.TUIOutput
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level, logOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(!ingestOnly); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, !ingestOnly, log)
	if err != nil {
		log.Fatal("failed to build components", "error", err)
	}
	defer comps.Close(log)

	pipeline, err := service.NewPipeline(service.PipelineConfig{
		TitleKeys:        cfg.Documents.TitleKeys,
		ExpectedKeys:     cfg.Documents.ExpectedKeys,
		IndexName:        cfg.SearchIndex.Name,
		CheckpointPath:   cfg.Checkpoint.Path,
		SummarySentences: cfg.Summarizer.MaxSentences,
		SkipUpload:       skipUpload,
	}, comps.loader, comps.embedder, comps.index, summarizer.NewFrequencySummarizer(), log)
	if err != nil {
		log.Fatal("invalid document settings", "error", err)
	}

	var report service.IngestReport
	if fromCheckpoint {
		report, err = pipeline.Reload(ctx)
	} else {
		report, err = pipeline.Ingest(ctx)
	}
	if err != nil {
		log.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	log.Info("ingest finished",
		"documents", report.Documents,
		"embedded", report.Embedded,
		"skipped", report.Skipped,
		"uploaded", report.Uploaded,
		"malformed", report.Malformed,
		"checkpoint", report.Checkpoint,
	)
	if ingestOnly {
		fmt.Println(describe(report, skipUpload))
		return
	}

	assistant := service.NewAssistant(service.AssistantConfig{
		SystemPrompt: cfg.Chat.SystemPrompt,
		TopK:         cfg.SearchIndex.TopK,
		HistoryTurns: cfg.Chat.HistoryTurns,
		Chat: chat.Options{
			Model:       cfg.Chat.Model,
			MaxTokens:   cfg.Chat.MaxTokens,
			Temperature: cfg.Chat.Temperature,
		},
	}, comps.embedder, comps.index, comps.completer, log)

	if !useTUI {
		fmt.Println(describe(report, skipUpload))
		if err := console.New(assistant, os.Stdin, os.Stdout, log).Run(ctx); err != nil {
			log.Error("console stopped", "error", err)
		}
		return
	}

	m := tui.New(ctx, assistant, describe(report, skipUpload))
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		log.Error("tui stopped", "error", err)
	}
}

func describe(r service.IngestReport, skipUpload bool) string {
	s := fmt.Sprintf("%d documents indexed", r.Uploaded)
	if skipUpload {
		s = fmt.Sprintf("%d documents embedded, saved to %s (upload skipped)", r.Embedded, r.Checkpoint)
	}
	if r.Skipped > 0 || r.Malformed > 0 {
		s += fmt.Sprintf(" (%d skipped, %d malformed)", r.Skipped, r.Malformed)
	}
	if r.UploadErr != nil {
		s += "; upload failed: " + r.UploadErr.Error()
	}
	if r.Summary != "" {
		s += "\n" + r.Summary
	}
	return s
}
