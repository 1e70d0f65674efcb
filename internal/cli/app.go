// Package cli implements the summarize command.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/dgallion1/pdfbrief/internal/config"
	"github.com/dgallion1/pdfbrief/internal/document"
	"github.com/dgallion1/pdfbrief/internal/llm"
	"github.com/dgallion1/pdfbrief/internal/logging"
	"github.com/dgallion1/pdfbrief/internal/parser"
	"github.com/dgallion1/pdfbrief/internal/summarize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
)

// App runs one summarize invocation.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// Load connects to the model. Defaults to llm.Load.
	Load func(ctx context.Context, cfg llm.Config, log *slog.Logger) (llm.Client, error)

	// Interactive reports whether to draw the progress view instead of printing lines.
	Interactive func() bool
}

// New returns an App wired to the process streams.
func New() *App {
	return &App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Load:   llm.Load,
		Interactive: func() bool {
			return isTerminal(os.Stdout) && isTerminal(os.Stderr)
		},
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type options struct {
	configPath  string
	output      string
	save        bool
	plain       bool
	verbose     bool
	chunkSize   int
	maxTokens   int
	temperature float64
	style       string
	input       string
	set         map[string]bool
}

func (a *App) parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(a.Stderr, "Usage: summarize [flags] file.pdf")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	fs.StringVar(&o.output, "o", "", "write the summary to this file")
	fs.BoolVar(&o.save, "save", false, "write the summary to <name>_summary.txt next to the input")
	fs.BoolVar(&o.plain, "plain", false, "print progress lines instead of the interactive view")
	fs.BoolVar(&o.verbose, "v", false, "log to stderr")
	fs.IntVar(&o.chunkSize, "chunk-size", 0, "characters per chunk")
	fs.IntVar(&o.maxTokens, "max-tokens", 0, "completion tokens per model call")
	fs.Float64Var(&o.temperature, "temperature", 0, "sampling temperature")
	fs.StringVar(&o.style, "style", "", "prompt style: bullets or plain")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return o, errors.New("expected exactly one input file")
	}
	o.input = fs.Arg(0)
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// Run executes the command and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	errOut := color.New(color.FgRed, color.Bold)

	opts, err := a.parseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return ExitOK
	}
	if err != nil {
		return ExitError
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		errOut.Fprintf(a.Stderr, "Error: %v\n", err)
		return ExitError
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		errOut.Fprintf(a.Stderr, "Invalid configuration: %v\n", err)
		return ExitError
	}
	params, err := cfg.Params()
	if err != nil {
		errOut.Fprintf(a.Stderr, "Invalid configuration: %v\n", err)
		return ExitError
	}

	logOut := io.Discard
	if opts.verbose {
		logOut = a.Stderr
	}
	log, logFile, err := logging.New(cfg.Logging(logOut, false))
	if err != nil {
		errOut.Fprintf(a.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer logFile.Close()

	// The model comes first so a broken backend fails before any file work.
	info := color.New(color.FgHiBlack)
	info.Fprintf(a.Stderr, "Loading model %s (%s)...\n", cfg.LLM.Model, cfg.LLM.Backend)
	client, err := a.Load(ctx, cfg.LLMClient(), log)
	if err != nil {
		errOut.Fprintf(a.Stderr, "Error loading model: %v\n", err)
		return ExitError
	}
	defer client.Close()

	text, ok := a.extract(opts.input, cfg, log)
	if !ok {
		return ExitError
	}

	s, err := summarize.New(client, params, log)
	if err != nil {
		errOut.Fprintf(a.Stderr, "Invalid configuration: %v\n", err)
		return ExitError
	}

	var out *summarize.Outcome
	if !opts.plain && a.Interactive != nil && a.Interactive() {
		out, err = runInteractive(ctx, s, text, opts.input, a.Stderr)
	} else {
		out, err = s.Summarize(ctx, text, newLineReporter(a.Stderr))
	}
	if err != nil {
		errOut.Fprintf(a.Stderr, "Summarization stopped: %v\n", err)
		return ExitError
	}

	return a.report(out, opts)
}

func (o options) apply(cfg *config.Config) {
	if o.set["chunk-size"] {
		cfg.Summarize.ChunkSize = o.chunkSize
	}
	if o.set["max-tokens"] {
		cfg.Summarize.MaxTokens = o.maxTokens
	}
	if o.set["temperature"] {
		cfg.Summarize.Temperature = o.temperature
	}
	if o.set["style"] {
		cfg.Summarize.Style = o.style
	}
}

// extract reads the input file and reports what was found. It prints its own errors.
func (a *App) extract(path string, cfg config.Config, log *slog.Logger) (string, bool) {
	errOut := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow)

	f, err := os.Open(path)
	if err != nil {
		errOut.Fprintf(a.Stderr, "Error: cannot read %s: %v\n", path, err)
		return "", false
	}
	defer f.Close()

	doc, err := parser.Extract(f, path, parser.Options{PDFFallback: cfg.PDFFallbackPdftotext})
	if err != nil {
		errOut.Fprintf(a.Stderr, "Error: %v\n", err)
		return "", false
	}

	text := doc.Text()
	if text == "" {
		errOut.Fprintf(a.Stderr, "Error: %s: %v\n", path, parser.ErrNoText)
		return "", false
	}

	fmt.Fprintf(a.Stderr, "Extracted %d characters from %d pages\n", utf8.RuneCountInString(text), doc.TotalPages)
	if n := doc.SkippedPages(); n > 0 {
		warn.Fprintf(a.Stderr, "Warning: %d pages had no extractable text\n", n)
	}
	log.Info("extracted text", "file", path, "pages", doc.TotalPages, "skipped_pages", doc.SkippedPages())
	return text, true
}

// report prints the outcome and writes any requested files.
func (a *App) report(out *summarize.Outcome, opts options) int {
	errOut := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow)

	switch out.State {
	case summarize.StateFailed:
		errOut.Fprintf(a.Stderr, "Error: %s (all %d chunks failed)\n", out.Summary, out.Chunks)
		return ExitError
	case summarize.StateDoneWithFallback:
		warn.Fprintf(a.Stderr, "Warning: showing the partial summaries joined together\n")
	}
	if n := out.Failed(); n > 0 {
		warn.Fprintf(a.Stderr, "Warning: %d of %d chunks were skipped\n", n, out.Chunks)
	}

	color.New(color.FgGreen, color.Bold).Fprintln(a.Stdout, "Summary:")
	fmt.Fprintln(a.Stdout, out.Summary)

	code := ExitOK
	var targets []string
	if opts.output != "" {
		targets = append(targets, opts.output)
	}
	if opts.save {
		targets = append(targets, document.SummaryFilename(opts.input))
	}
	for _, path := range targets {
		if err := os.WriteFile(path, []byte(out.Summary+"\n"), 0o644); err != nil {
			errOut.Fprintf(a.Stderr, "Error: save summary: %v\n", err)
			code = ExitError
			continue
		}
		fmt.Fprintf(a.Stderr, "Saved summary to %s\n", path)
	}
	return code
}
