package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"infolookup/internal"
	"infolookup/internal/app"
	"infolookup/internal/config"
	"infolookup/internal/connectors"
	"infolookup/internal/listener"
	"infolookup/internal/pipeline"
	"infolookup/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	a, err := app.New(cfg)
	must(err)
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "lookup:phone":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "raw values or a file path")
		inType := fs.String("type", "", "text|file|xlsx|csv|html|pdf|eml (default: from file extension)")
		column := fs.String("column", "", "spreadsheet column header")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		source := resolveSource(*inType, *input)
		items, err := pipeline.ExtractInputs(source, *input, *column)
		must(err)
		res, err := a.LookupPhones(ctx, source, pipeline.Values(items), printProgress)
		must(err)
		finish(a, res, *output)
	case "lookup:vehicle":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		reg := fs.String("reg", "", "registration numbers, comma or newline separated")
		input := fs.String("input", "", "file with registration numbers")
		category := fs.String("category", "", "\"2 wheeler\"|\"4 wheeler\"")
		column := fs.String("column", "", "spreadsheet column header")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])

		regs := util.SplitItems(*reg)
		source := internal.SourceText
		if strings.TrimSpace(*input) != "" {
			source = pipeline.SourceForPath(*input)
			items, err := pipeline.ExtractInputs(source, *input, *column)
			must(err)
			regs = append(regs, pipeline.Values(items)...)
		}
		res, err := a.LookupVehicles(ctx, source, regs, *category, printProgress)
		must(err)
		if len(regs) == 1 && *output == "" {
			printRecord(os.Stdout, res.Table)
			return
		}
		finish(a, res, *output)
	case "merge":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dataset := fs.String("dataset", "", "xlsx or csv dataset path")
		column := fs.String("column", "", "key column header")
		domainName := fs.String("domain", "phone", "phone|vehicle")
		category := fs.String("category", "", "vehicle category")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *dataset == "" || *column == "" || *output == "" {
			must(fmt.Errorf("--dataset --column --output are required"))
		}
		domain, err := internal.ParseDomain(*domainName)
		must(err)

		ds, err := pipeline.ReadDataset(*dataset)
		must(err)
		idx := ds.Column(*column)
		if idx < 0 {
			must(fmt.Errorf("%w: %q", pipeline.ErrKeyColumnNotFound, *column))
		}
		keys := util.DedupeAndTrim(ds.ColumnValues(idx))
		source := pipeline.SourceForPath(*dataset)

		var (
			res       app.RunResult
			normalize func(string) string
		)
		if domain == internal.DomainVehicle {
			res, err = a.LookupVehicles(ctx, source, keys, *category, printProgress)
			normalize = pipeline.NormalizeRegistration
		} else {
			res, err = a.LookupPhones(ctx, source, keys, printProgress)
			normalize = func(v string) string { return pipeline.NormalizeIdentifier(v).Normalized }
		}
		must(err)

		merged, err := pipeline.Merge(ds, *column, res.Table, normalize)
		must(err)
		must(pipeline.ExportDatasetXLSX(merged, *output))
		fmt.Printf("merge done run=%s rows=%d output=%s\n", res.RunID, len(merged.Rows), *output)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		runID := fs.String("run", "", "run id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*runID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--run and --out are required"))
		}
		table, err := a.DB.GetRunTable(*runID)
		must(err)
		must(pipeline.ExportTableXLSX(table, *out))
		fmt.Printf("exported %d rows to %s\n", len(table.Rows), *out)
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		runs, err := a.DB.ListRuns(*limit)
		must(err)
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.ID, string(r.Domain), r.Source, r.StartedAt,
				fmt.Sprint(r.Inputs), fmt.Sprint(r.Rows), formatCounts(r.Counts),
			})
		}
		printTable(os.Stdout, []string{"id", "domain", "source", "started", "inputs", "rows", "outcomes"}, rows)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.NewConnector(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(a.DB, cfg.RawMailDir, conn, a.Log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := a.Processor()
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d run=%s inputs=%d rows=%d skipped=%t\n", res.EmailID, res.RunID, res.Inputs, res.Rows, res.Skipped)
			return
		}
		emails, rows, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d rows=%d\n", emails, rows)
	case "mail:listen":
		s := listener.NewService(a.DB, cfg, a.Processor(), a.Log)
		must(s.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

// resolveSource honours an explicit --type; otherwise an existing path is read by
// extension and anything else is treated as the values themselves.
func resolveSource(inType, input string) internal.InputSource {
	if t := strings.ToLower(strings.TrimSpace(inType)); t != "" {
		return internal.InputSource(t)
	}
	if st, err := os.Stat(input); err == nil && !st.IsDir() {
		return pipeline.SourceForPath(input)
	}
	return internal.SourceText
}

func printProgress(p pipeline.Progress) {
	for _, row := range p.Latest {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", p.Done, p.Total, row.Input, row.Status)
	}
}

func finish(a *app.App, res app.RunResult, output string) {
	counts := res.Table.Counts()
	if output == "" {
		printResults(os.Stdout, res.Table)
	} else {
		must(pipeline.ExportTableXLSX(res.Table, output))
	}
	fmt.Printf("run done run=%s rows=%d found=%d not_found=%d invalid=%d failed=%d output=%s\n",
		res.RunID, len(res.Table.Rows),
		counts[internal.OutcomeFound],
		counts[internal.OutcomeNotFound],
		counts[internal.OutcomeInvalidFormat],
		counts[internal.OutcomeTransportFailure]+counts[internal.OutcomeProviderError],
		output,
	)
	a.Log.Debug("lookup finished", "run_id", res.RunID)
}

func formatCounts(counts map[internal.OutcomeKind]int) string {
	kinds := []internal.OutcomeKind{
		internal.OutcomeFound, internal.OutcomeNotFound, internal.OutcomeInvalidFormat,
		internal.OutcomeTransportFailure, internal.OutcomeProviderError,
	}
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, " ")
}

func usage() {
	fmt.Println("usage: infolookup <command>")
	fmt.Println("commands:")
	fmt.Println("  lookup:phone --input=... [--type=text|file|xlsx|csv|html|pdf|eml] [--column=...] [--output=...xlsx]")
	fmt.Println("  lookup:vehicle --reg=... | --input=... --category=\"2 wheeler\"|\"4 wheeler\" [--output=...xlsx]")
	fmt.Println("  merge --dataset=... --column=... [--domain=phone|vehicle] [--category=...] --output=...xlsx")
	fmt.Println("  export:xlsx --run=<id> --out=./out/result.xlsx")
	fmt.Println("  runs [--limit=20]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
