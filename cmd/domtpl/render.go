package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	domtpl "github.com/goliatone/go-domtpl"
	"github.com/goliatone/go-domtpl/internal/prompt"
	"github.com/goliatone/go-domtpl/internal/watch"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
)

var renderFlags struct {
	template string
	data     string
	mode     string
	output   string
	watch    bool
	pongo    bool
	ask      []string
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a template file",
	Long: `Render a template file with optional data and write the HTML result.

Relative tpl-include references resolve against the template's directory.
Data may be a JSON or YAML file, an http(s) URL or an inline JSON object.

Examples:
  # Render to stdout
  domtpl render --template page.html --data page.yaml

  # Inline data
  domtpl render --template card.html --data '{"name": "Ada"}'

  # Prompt for values, "?" suffix asks yes/no
  domtpl render --template card.html --ask name --ask admin?

  # Render a legacy pongo2 template as a single unit
  domtpl render --template legacy.html --pongo --data page.yaml

  # Keep rendering on change
  domtpl render --template page.html --output out.html --watch`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderFlags.template, "template", "t", "", "template file")
	renderCmd.Flags().StringVarP(&renderFlags.data, "data", "d", "", "data file, URL or inline JSON object")
	renderCmd.Flags().StringVar(&renderFlags.mode, "mode", "replace", "placement mode: replace, append, prepend")
	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "output file (stdout if empty)")
	renderCmd.Flags().BoolVarP(&renderFlags.watch, "watch", "w", false, "re-render when the template directory or data file changes")
	renderCmd.Flags().BoolVar(&renderFlags.pongo, "pongo", false, "render the template with pongo2 instead of the directive pipeline")
	renderCmd.Flags().StringArrayVar(&renderFlags.ask, "ask", nil, "prompt for a data key before rendering (repeatable)")
	_ = renderCmd.MarkFlagRequired("template")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode, err := render.ParseMode(renderFlags.mode)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	dir, name := filepath.Split(renderFlags.template)
	if dir == "" {
		dir = "."
	}
	engine, err := domtpl.New(
		domtpl.WithConfig(cfg),
		domtpl.WithLogger(logger),
		domtpl.WithFileSystem(os.DirFS(dir)),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	job := renderJob{
		engine: engine,
		source: loader.FromFS(name),
		mode:   mode,
		data:   renderFlags.data,
		output: renderFlags.output,
		stdout: cmd.OutOrStdout(),
	}
	if renderFlags.pongo {
		job.pongo = name
	}
	if len(renderFlags.ask) > 0 {
		job.prompt = func(ctx context.Context, data map[string]any) error {
			return prompt.Fill(ctx, prompt.Survey(), renderFlags.ask, data)
		}
	}
	if err := job.run(ctx); err != nil {
		return err
	}
	if !renderFlags.watch {
		return nil
	}

	paths := []string{dir}
	if fileRef(renderFlags.data) {
		paths = append(paths, renderFlags.data)
	}
	w, err := watch.New(watch.Config{Paths: paths, Debounce: cfg.Watch.Debounce}, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if cfg.Metrics.Enabled && cfg.Metrics.Address != "" {
		go serveMetrics(ctx, engine, cfg.Metrics.Address)
	}
	job.prompt = nil
	return w.Watch(ctx, func(ctx context.Context) error {
		engine.Loader().Purge()
		return job.run(ctx)
	})
}

// renderJob renders one template and writes the result. A non-empty pongo
// names a pongo2 template rendered instead of source.
type renderJob struct {
	engine *domtpl.Engine
	source loader.Source
	pongo  string
	mode   render.Mode
	data   string
	output string
	stdout io.Writer
	prompt func(ctx context.Context, data map[string]any) error
}

func (j renderJob) run(ctx context.Context) error {
	data, err := readData(ctx, j.engine, j.data)
	if err != nil {
		return err
	}
	if j.prompt != nil {
		if err := j.prompt(ctx, data); err != nil {
			return err
		}
	}

	container, err := j.container()
	if err != nil {
		return err
	}
	if _, err := j.engine.Render(ctx, domtpl.Request{
		Source:    j.source,
		Template:  j.pongo,
		Data:      data,
		Container: container,
		Mode:      j.mode,
	}); err != nil {
		return err
	}
	if err := j.engine.Renderer().Wait(ctx); err != nil {
		return err
	}
	out, err := dom.InnerHTML(container)
	if err != nil {
		return err
	}

	if j.output == "" {
		_, err = fmt.Fprintln(j.stdout, out)
		return err
	}
	if err := os.WriteFile(j.output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	j.engine.Renderer().Logger().Info("template rendered", "output", j.output, "bytes", len(out))
	return nil
}

// container seeds the output with the existing file for append and prepend.
func (j renderJob) container() (*html.Node, error) {
	container := dom.NewFragment()
	if j.output == "" || j.mode == render.ModeReplace {
		return container, nil
	}
	existing, err := os.ReadFile(j.output)
	if errors.Is(err, fs.ErrNotExist) {
		return container, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	nodes, err := dom.Parse(string(existing))
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}
	dom.Append(container, nodes...)
	return container, nil
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, engine *domtpl.Engine, addr string) {
	logger := engine.Renderer().Logger()
	mux := http.NewServeMux()
	mux.Handle("/metrics", engine.Metrics().Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

func fileRef(ref string) bool {
	if ref == "" || ref[0] == '{' {
		return false
	}
	_, err := os.Stat(ref)
	return err == nil
}
