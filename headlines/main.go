package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/DeafMist/headline-radar/internal/analytics"
	"github.com/DeafMist/headline-radar/internal/backends"
	"github.com/DeafMist/headline-radar/internal/config"
	"github.com/DeafMist/headline-radar/internal/deadletter"
	"github.com/DeafMist/headline-radar/internal/enrich"
	"github.com/DeafMist/headline-radar/internal/errs"
	"github.com/DeafMist/headline-radar/internal/ingest"
	"github.com/DeafMist/headline-radar/internal/logger"
	"github.com/DeafMist/headline-radar/internal/metrics"
	"github.com/DeafMist/headline-radar/internal/models"
	"github.com/DeafMist/headline-radar/internal/processing"
	"github.com/DeafMist/headline-radar/internal/store"
	"github.com/DeafMist/headline-radar/internal/tabular"
)

const usage = `usage: headlines <command> [args]

commands:
  import <file>                 normalize and bulk insert a .csv or .xlsx file
  enrich                        annotate stored headlines with entities and sentiment
  top-entities [-k N] [-counts] print the most frequent entities
  entity-headlines <text>       print headlines mentioning an entity
  stats                         print document and sentiment counts
`

var errUsage = errors.New("usage")

var commands = map[string]bool{
	"import":           true,
	"enrich":           true,
	"top-entities":     true,
	"entity-headlines": true,
	"stats":            true,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || !commands[args[0]] {
		fmt.Fprint(stderr, usage)
		return errs.ExitFailure
	}
	command := args[0]

	log := logger.NewWriter("headlines", stderr).With(slog.String("command", command))
	cfg, err := config.LoadCLI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return errs.ExitConfig
	}

	stopwords, err := processing.LoadStopwords(cfg.StopwordsPath)
	if err != nil {
		log.Error("load stopwords", slog.Any("err", err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return errs.ExitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := backends.OpenStore(ctx, cfg.Common, log)
	if err != nil {
		log.Error("open store", slog.Any("err", err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return errs.ExitCode(err)
	}
	defer st.Close()

	a := &app{
		cfg:       cfg,
		store:     st,
		stopwords: stopwords,
		models:    func() (backends.Models, error) { return backends.OpenModels(cfg) },
		metrics:   metrics.New(),
		out:       stdout,
		log:       log,
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := deadletter.NewKafka(cfg.KafkaBrokers, cfg.DeadLetterTopic, log)
		defer pub.Close()
		a.sink = pub
	}

	start := time.Now()
	err = a.run(ctx, args)
	elapsed := time.Since(start)
	a.metrics.ObserveRun(command, elapsed, err)
	a.pushMetrics(ctx, command)

	if err != nil {
		log.Error("command failed", slog.Any("err", err), slog.Duration("elapsed", elapsed))
		fmt.Fprintf(stderr, "%s failed after %s: %v\n", command, elapsed.Round(time.Millisecond), err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(stderr, usage)
		}
		return errs.ExitCode(err)
	}
	log.Info("command finished", slog.Duration("elapsed", elapsed))
	return errs.ExitOK
}

// app owns the collaborators of one command invocation.
type app struct {
	cfg       *config.CLI
	store     store.Store
	stopwords processing.Stopwords
	models    func() (backends.Models, error)
	sink      enrich.FailureSink
	metrics   *metrics.Metrics
	out       io.Writer
	log       *slog.Logger
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "import":
		return a.importFile(ctx, args[1:])
	case "enrich":
		return a.enrich(ctx)
	case "top-entities":
		return a.topEntities(ctx, args[1:])
	case "entity-headlines":
		return a.entityHeadlines(ctx, args[1:])
	case "stats":
		return a.stats(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func (a *app) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import takes exactly one file", errUsage)
	}
	start := time.Now()

	table, err := tabular.Load(args[0])
	if err != nil {
		return err
	}
	if err := table.Require(a.cfg.TextColumn); err != nil {
		return err
	}

	n, err := ingest.New(a.store, a.stopwords, a.cfg.TextColumn, a.log).Ingest(ctx, table.Rows)
	if err != nil {
		return err
	}
	a.metrics.DocsImportedTotal.Add(float64(n))

	fmt.Fprintf(a.out, "imported %d headlines in %s\n", n, time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) enrich(ctx context.Context) error {
	policy, err := enrich.ParsePolicy(a.cfg.EnrichPolicy)
	if err != nil {
		return err
	}
	m, err := a.models()
	if err != nil {
		return err
	}

	opts := enrich.Options{Policy: policy, PendingOnly: a.cfg.PendingOnly}
	report, err := enrich.New(a.store, m.Extractor, m.Scorer, opts, a.sink, a.log).EnrichAll(ctx)
	a.metrics.DocsEnrichedTotal.Add(float64(report.Enriched))
	a.metrics.DocsFailedTotal.Add(float64(len(report.Failures)))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "enriched %d of %d headlines in %s\n",
		report.Enriched, report.Scanned, report.Elapsed.Round(time.Millisecond))
	if len(report.Failures) > 0 {
		fmt.Fprintf(a.out, "%d headlines failed, run %s\n", len(report.Failures), report.RunID)
		for _, f := range report.Failures {
			fmt.Fprintf(a.out, "  %s: %v\n", f.ID, f.Err)
		}
	}
	return nil
}

func (a *app) topEntities(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top-entities", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	k := fs.Int("k", a.cfg.TopLimit, "number of entities")
	withCounts := fs.Bool("counts", false, "print type and count next to each entity")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	top, err := analytics.TopEntities(ctx, a.store, *k)
	if err != nil {
		return err
	}
	for _, ec := range top {
		if *withCounts {
			fmt.Fprintf(a.out, "%s\t%s\t%d\n", ec.Entity.Text, ec.Entity.Type, ec.Count)
			continue
		}
		fmt.Fprintln(a.out, ec.Entity.Text)
	}
	return nil
}

func (a *app) entityHeadlines(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: entity-headlines takes the entity text", errUsage)
	}
	entity := strings.Join(args, " ")

	for text, err := range analytics.Headlines(ctx, a.store, entity) {
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, text)
	}
	return nil
}

func (a *app) stats(ctx context.Context) error {
	s, err := analytics.Summarize(ctx, a.store)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "documents: %d\n", s.Documents)
	fmt.Fprintf(a.out, "enriched:  %d\n", s.Enriched)

	labels := make([]string, 0, len(s.Sentiment))
	for label := range s.Sentiment {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(a.out, "  %-9s %d\n", label, s.Sentiment[models.SentimentLabel(label)])
	}
	return nil
}

func (a *app) pushMetrics(ctx context.Context, command string) {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.metrics.Push(pushCtx, a.cfg.PushgatewayURL, "headlines_"+strings.ReplaceAll(command, "-", "_")); err != nil {
		a.log.Warn("push metrics", slog.Any("err", err))
	}
}
