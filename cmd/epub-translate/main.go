// Command epub-translate translates the body of an XHTML file through
// an OpenAI-compatible model, preserving all markup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"epub-translator/internal/config"
	"epub-translator/internal/contextwin"
	"epub-translator/internal/logger"
	"epub-translator/internal/model"
	"epub-translator/internal/translator"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config JSON (optional)")
		inPath     = flag.String("in", "", "input XHTML file")
		outPath    = flag.String("out", "", "output file (default: stdout)")
		sourceLang = flag.String("from", "", "source language tag (overrides config)")
		targetLang = flag.String("to", "", "target language tag (overrides config)")
		modelName  = flag.String("model", "gpt-4o-mini", "model name")
		baseURL    = flag.String("base-url", "", "OpenAI-compatible API base URL")
		logPath    = flag.String("log", "epub-translate.log", "log file path")
		verbose    = flag.Bool("verbose", false, "log progress to the console")
	)
	flag.Parse()

	level := logger.LevelInfo
	if *verbose {
		level = logger.LevelDebug
	}
	if err := logger.Init(&logger.Config{
		LogFilePath:   *logPath,
		Level:         level,
		EnableConsole: *verbose,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: epub-translate -in chapter.xhtml [-out chapter.fr.xhtml] [-to fr]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *sourceLang != "" {
		cfg.SourceLang = *sourceLang
	}
	if *targetLang != "" {
		cfg.TargetLang = *targetLang
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := model.NewOpenAIProvider(ctx, model.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: *baseURL,
		Model:   *modelName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create provider: %v\n", err)
		os.Exit(1)
	}

	caps := contextwin.NewCapabilityCache(cfg.CapabilityCachePath)
	if err := caps.Load(); err != nil {
		logger.Warn("capability cache load failed", logger.Err(err))
	}

	markup, err := os.ReadFile(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input: %v\n", err)
		os.Exit(1)
	}

	engine := translator.NewEngine(provider, cfg, caps)
	if *verbose {
		engine.OnEvent = func(ev translator.Event) {
			switch ev.Kind {
			case translator.EventChunkStarted:
				fmt.Fprintf(os.Stderr, "chunk %d/%d...\n", ev.ChunkIndex+1, ev.TotalChunks)
			case translator.EventFallbackUsed:
				fmt.Fprintf(os.Stderr, "chunk %d/%d: fallback %s\n", ev.ChunkIndex+1, ev.TotalChunks, ev.Phase)
			}
		}
	}

	out, res, err := engine.TranslateDocument(ctx, string(markup))
	if err != nil {
		fmt.Fprintf(os.Stderr, "translation failed: %v\n", err)
		os.Exit(1)
	}

	if *outPath == "" {
		fmt.Print(out)
	} else if err := os.WriteFile(*outPath, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}

	m := res.Metrics
	fmt.Fprintf(os.Stderr, "done: %d chunks (%d first try, %d retried, %d aligned, %d untranslated, %d skipped), %d tokens, %dms\n",
		m.TotalChunks, m.FirstTryChunks, m.RetriedChunks, m.AlignedChunks, m.UntranslatedChunks, m.SkippedChunks,
		res.TokensUsed, m.DurationMs)
}
