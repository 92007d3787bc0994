package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	domtpl "github.com/goliatone/go-domtpl"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/sanitize"
)

var serveFlags struct {
	dir    string
	listen string
	data   string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a template directory over HTTP",
	Long: `Render templates from a directory on request.

GET /page.html renders page.html with the --data values merged with the query
string. Directories render their index.html. When metrics are enabled in the
config, /metrics exposes the Prometheus collectors.

Examples:
  domtpl serve --dir ./templates --listen :8080
  domtpl serve --dir ./templates --data site.yaml --config domtpl.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.dir, "dir", ".", "template directory")
	serveCmd.Flags().StringVarP(&serveFlags.listen, "listen", "l", ":8080", "listen address")
	serveCmd.Flags().StringVarP(&serveFlags.data, "data", "d", "", "base data file, URL or inline JSON object")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	engine, err := domtpl.New(
		domtpl.WithConfig(cfg),
		domtpl.WithLogger(logger),
		domtpl.WithFileSystem(os.DirFS(serveFlags.dir)),
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

	base, err := readData(ctx, engine, serveFlags.data)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              serveFlags.listen,
		Handler:           newServeHandler(engine, base, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving templates", "dir", serveFlags.dir, "listen", serveFlags.listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newServeHandler renders the requested template path. Query parameters
// override base data values; tags are stripped from them first.
func newServeHandler(engine *domtpl.Engine, base map[string]any, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	if engine.Config().Metrics.Enabled {
		mux.Handle("/metrics", engine.Metrics().Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}

		data := make(map[string]any, len(base)+len(r.URL.Query()))
		for k, v := range base {
			data[k] = v
		}
		for k, values := range r.URL.Query() {
			if len(values) == 1 {
				data[k] = sanitize.StripTags(values[0])
				continue
			}
			items := make([]any, len(values))
			for i, v := range values {
				items[i] = sanitize.StripTags(v)
			}
			data[k] = items
		}

		container := dom.NewFragment()
		_, err := engine.Render(r.Context(), domtpl.Request{
			Source:    loader.FromFS(name),
			Data:      data,
			Container: container,
		})
		if err == nil {
			err = engine.Renderer().Wait(r.Context())
		}
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, loader.ErrTemplateLoad) {
				status = http.StatusNotFound
			}
			logger.Warn("render request failed", "path", name, "status", status, "error", err)
			http.Error(w, http.StatusText(status), status)
			return
		}
		out, err := dom.InnerHTML(container)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(out))
	})
	return mux
}
