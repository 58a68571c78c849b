package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/recera/mdxlite/cmd/mdxlite/internal/config"
	"github.com/recera/mdxlite/pkg/mdx"
	"github.com/recera/mdxlite/pkg/renderer/html"
)

const (
	wsPath         = "/__mdxlite/ws"
	maxRequestSize = 1 << 20
)

type devServer struct {
	site      *site
	watcher   *fsnotify.Watcher
	wsClients map[*websocket.Conn]bool
	wsMutex   sync.Mutex
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

func newDevCommand(flags *globalFlags) *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Serves the documents of the content directory as HTML, re-rendering them
when they change and reloading open pages. POST /api/compile compiles a
JSON {"source": "..."} body.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			// CLI takes precedence
			if cmd.Flags().Changed("port") {
				cfg.Dev.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Dev.Host = host
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runDev(cmd.Context(), cfg, flags.logger())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 5173, "Port to run the dev server on")
	cmd.Flags().StringVarP(&host, "host", "H", "localhost", "Host to bind the dev server to")

	return cmd
}

func runDev(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	s, err := newSite(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	server := newDevServer(s, logger)

	// Set up file watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	server.watcher = watcher

	if err := server.setupWatcher(); err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	go server.watchFiles(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Dev.Host, cfg.Dev.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down dev server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Println(successStyle.Render("✨ Dev server running at"), "http://"+addr)
	fmt.Println(mutedStyle.Render("   serving " + cfg.ContentDir))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newDevServer(s *site, logger *slog.Logger) *devServer {
	return &devServer{
		site:      s,
		wsClients: make(map[*websocket.Conn]bool),
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins in dev mode
				return true
			},
		},
	}
}

func (s *devServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.serveIndex)
	r.Get(wsPath, s.handleWebSocket)
	r.Post("/api/compile", s.handleCompile)
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/*", s.serveDocument)

	return r
}

func (s *devServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *devServer) setupWatcher() error {
	// Watch the content directory and its subdirectories
	return filepath.WalkDir(s.site.contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.site.contentDir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return s.watcher.Add(path)
	})
}

func (s *devServer) watchFiles(ctx context.Context) {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	var pendingEvents []fsnotify.Event

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			pendingEvents = append(pendingEvents, event)

			// Reset debounce timer
			debounce.Reset(100 * time.Millisecond)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)

		case <-debounce.C:
			events := pendingEvents
			pendingEvents = nil
			if len(events) > 0 {
				s.handleFileChanges(events)
			}
		}
	}
}

// handleFileChanges invalidates changed documents and reloads open pages
func (s *devServer) handleFileChanges(events []fsnotify.Event) {
	seen := make(map[string]bool)
	var changed []string

	for _, event := range events {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := s.watcher.Add(event.Name); err != nil {
					s.logger.Warn("failed to watch directory", "path", event.Name, "error", err)
				}
				continue
			}
		}
		if !isDocument(event.Name) {
			continue
		}

		rel, err := filepath.Rel(s.site.contentDir, event.Name)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			continue
		}
		seen[rel] = true

		s.site.invalidate(rel)
		changed = append(changed, rel)
	}

	if len(changed) == 0 {
		return
	}
	s.logger.Info("documents changed", "paths", changed)
	s.notifyClients("reload", map[string]interface{}{
		"paths": changed,
	})
}

func (s *devServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	// Register client
	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
	}()

	// Handle messages
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", "error", err)
			}
			break
		}

		switch msg["type"] {
		case "HELLO":
			s.wsMutex.Lock()
			err := conn.WriteJSON(map[string]interface{}{"type": "ACK"})
			s.wsMutex.Unlock()
			if err != nil {
				return
			}
		default:
			s.logger.Debug("unknown websocket message", "type", msg["type"])
		}
	}
}

// notifyClients sends a message to every connected page. Writes hold the
// lock because a connection supports one concurrent writer.
func (s *devServer) notifyClients(msgType string, data map[string]interface{}) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	message := map[string]interface{}{
		"type": strings.ToUpper(msgType),
	}
	for k, v := range data {
		message[k] = v
	}

	for client := range s.wsClients {
		if err := client.WriteJSON(message); err != nil {
			s.logger.Warn("failed to send message to client", "error", err)
		}
	}
}

// documentPath maps a URL path to a document under the content directory.
// It returns "" when no document matches.
func (s *devServer) documentPath(urlPath string) string {
	clean := path.Clean("/" + urlPath)
	if strings.Contains(clean, "..") {
		return ""
	}
	rel := strings.TrimPrefix(clean, "/")
	rel = strings.TrimSuffix(rel, ".html")
	if isDocument(rel) {
		rel = strings.TrimSuffix(rel, path.Ext(rel))
	}
	if rel == "" {
		return ""
	}

	for _, ext := range []string{".mdx", ".md"} {
		candidate := rel + ext
		info, err := os.Stat(filepath.Join(s.site.contentDir, filepath.FromSlash(candidate)))
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func (s *devServer) serveDocument(w http.ResponseWriter, r *http.Request) {
	rel := s.documentPath(chi.URLParam(r, "*"))
	if rel == "" {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	data, cached, err := s.site.render(r.Context(), rel)
	if err != nil {
		s.logger.Warn("render failed", "path", rel, "error", err)
		s.writePage(w, http.StatusInternalServerError, rel, htmltemplate.HTML(`<pre class="mdxlite-error">`+htmltemplate.HTMLEscapeString(err.Error())+`</pre>`))
		return
	}

	s.logger.Debug("document rendered", "path", rel, "cached", cached, "bytes", len(data))
	s.writePage(w, http.StatusOK, rel, htmltemplate.HTML(data))
}

func (s *devServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	docs, err := s.site.documents()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, docs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writePage(w, http.StatusOK, "Documents", htmltemplate.HTML(buf.String()))
}

func (s *devServer) writePage(w http.ResponseWriter, status int, title string, body htmltemplate.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	err := pageTemplate.Execute(w, struct {
		Title  string
		Body   htmltemplate.HTML
		WSPath string
	}{title, body, wsPath})
	if err != nil {
		s.logger.Warn("failed to write page", "error", err)
	}
}

// compileRequest is the body of POST /api/compile. Source is decoded as
// any JSON value so that non-string sources are reported, not coerced.
type compileRequest struct {
	Source any `json:"source"`
}

func (s *devServer) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tree, err := mdx.CompileValue(r.Context(), req.Source, s.site.compileOpts)
	if err != nil {
		status := http.StatusUnprocessableEntity
		var cfgErr *mdx.ConfigurationError
		if errors.As(err, &cfgErr) {
			status = http.StatusBadRequest
		}
		body := map[string]string{"error": err.Error()}
		var stageErr *mdx.StageError
		if errors.As(err, &stageErr) {
			body["stage"] = stageErr.Stage.String()
		}
		writeJSON(w, status, body)
		return
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, tree, s.site.renderOpts); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var pageTemplate = htmltemplate.Must(htmltemplate.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
<script>
(function() {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + {{.WSPath}});
  ws.onmessage = function(e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "RELOAD") location.reload();
  };
})();
</script>
</body>
</html>
`))

var indexTemplate = htmltemplate.Must(htmltemplate.New("index").Parse(`<h1>Documents</h1>
<ul>
{{range .}}<li><a href="/{{.}}">{{.}}</a></li>
{{else}}<li>No documents</li>
{{end}}</ul>
`))
