// File: cmd/taskctl/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"genmedia-studio/internal/application"
	"genmedia-studio/internal/config"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/infra/logging"
)

const usage = `usage: taskctl [-config path] <command> [args]

commands:
  list                         print every task
  import [-kind k] <file|->    import task ids (whitespace or comma separated)
  export [-o file]             write the export document (stdout by default)

import infers the kind as image-to-image or text-to-video when -kind is
empty. Pass -kind image-to-video to import image-to-video jobs.
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Log.Format = "console"
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	// Open leaves unfinished tasks alone; only imported ones get polled.
	if err := app.Open(ctx); err != nil {
		app.Close(context.Background())
		log.Fatalf("open: %v", err)
	}

	args := flag.Args()
	switch args[0] {
	case "list":
		err = runList(ctx, app)
	case "import":
		err = runImport(ctx, app, args[1:])
	case "export":
		err = runExport(app, args[1:])
	default:
		flag.Usage()
		err = fmt.Errorf("unknown command %q", args[0])
	}
	// Close drains the pending remote writes.
	app.Close(context.Background())
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func runList(ctx context.Context, app *application.App) error {
	for _, t := range app.Tasks.List(ctx) {
		fmt.Printf("%s  %-15s %-9s %3d%%  %s\n", t.TaskID, t.Kind, t.Status, t.Progress, t.ResultURL)
	}
	return nil
}

func runImport(ctx context.Context, app *application.App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	kindFlag := fs.String("kind", "", "task kind for every id; empty infers image-to-image or text-to-video")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one input file or -")
	}

	var kind model.Kind
	if *kindFlag != "" {
		k, err := model.ParseKind(*kindFlag)
		if err != nil {
			return err
		}
		kind = k
	}

	var in io.Reader = os.Stdin
	if name := fs.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	res, err := app.Sync.ImportByIDs(ctx, string(raw), kind)
	if err != nil {
		return err
	}
	for _, id := range res.Succeeded {
		fmt.Printf("imported: %s\n", id)
	}
	for _, id := range res.Skipped {
		fmt.Printf("skipped:  %s (already present)\n", id)
	}
	for _, f := range res.Failed {
		fmt.Printf("failed:   %s (%s)\n", f.TaskID, f.Reason)
	}
	fmt.Printf("done: %d imported, %d skipped, %d failed\n", len(res.Succeeded), len(res.Skipped), len(res.Failed))
	return nil
}

func runExport(app *application.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "", "output file")
	_ = fs.Parse(args)

	body, err := app.Sync.ExportAll()
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = os.Stdout.Write(append(body, '\n'))
		return err
	}
	if err := os.WriteFile(*out, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d bytes to %s\n", len(body), *out)
	return nil
}
