package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wordflux/boardctl/internal/appctx"
	"github.com/wordflux/boardctl/internal/config"
	"github.com/wordflux/boardctl/internal/dispatch"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/ratelimit"
)

// TokenHeader carries the shared secret on bridge requests.
const TokenHeader = "X-Board-Token"

// NewServeCmd creates the serve command, an HTTP bridge for chat platform
// webhooks and other local integrations.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP bridge",
		Long: `Run an HTTP bridge exposing the dispatch surface.

POST /invoke with {"method": ..., "params": ...} executes one method and
returns the result envelope. POST /message with {"message": ...} interprets
a natural-language instruction. GET /healthz reports liveness.

Requests must carry the configured serve_token in the ` + TokenHeader + `
header. Callers are rate limited per remote address. Edits to the config
file are picked up live for column synonym overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if addr == "" {
				addr = app.Config.ServeAddr
			}

			bridge := NewBridge(app)
			stop := bridge.WatchConfig(cmd.Context())
			defer stop()

			server := &http.Server{
				Addr:              addr,
				Handler:           bridge,
				ReadHeaderTimeout: 5 * time.Second,
			}
			bridge.logger.Info("bridge listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return output.ErrNetwork(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, "+config.Default().ServeAddr+")")
	return cmd
}

// Bridge is the HTTP handler for the serve command. The config snapshot and
// the dispatcher built from it are swapped atomically on reload, so in-flight
// requests keep the snapshot they started with.
type Bridge struct {
	app       *appctx.App
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	mux       *http.ServeMux
	overrides config.FlagOverrides

	mu         sync.RWMutex
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
}

// NewBridge creates a bridge over an app's provider and undo store.
func NewBridge(app *appctx.App) *Bridge {
	cfg := app.Config
	b := &Bridge{
		app: app,
		limiter: ratelimit.New(cfg.RateLimit,
			time.Duration(cfg.RateWindowSecs)*time.Second),
		logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
		cfg:        cfg,
		dispatcher: app.Dispatcher,
		// Flag overrides outrank the config file on every reload, exactly
		// as they did at startup.
		overrides: config.FlagOverrides{
			Config:  cfg.Path,
			Project: app.Flags.Project,
			Me:      app.Flags.Me,
			Verbose: app.Flags.Verbose,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke", b.handleInvoke)
	mux.HandleFunc("POST /message", b.handleMessage)
	mux.HandleFunc("GET /healthz", b.handleHealth)
	b.mux = mux
	return b
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// snapshot returns the current config and dispatcher pair.
func (b *Bridge) snapshot() (*config.Config, *dispatch.Dispatcher) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg, b.dispatcher
}

// Reload swaps in a new config snapshot and rebuilds the dispatcher with its
// column synonyms. Provider and undo store are kept.
func (b *Bridge) Reload(cfg *config.Config) {
	dispatcher := dispatch.New(b.app.Provider, b.app.Undo, cfg.ProjectID,
		dispatch.WithMe(cfg.Me),
		dispatch.WithBackupDir(cfg.BackupDir),
		dispatch.WithSynonyms(cfg.ColumnSynonyms),
	)

	b.mu.Lock()
	b.cfg = cfg
	b.dispatcher = dispatcher
	b.mu.Unlock()
}

// reloadFromFile rebuilds the snapshot from the config file, reapplying the
// flag overrides the bridge was started with.
func (b *Bridge) reloadFromFile() error {
	next, err := config.Load(b.overrides)
	if err != nil {
		return err
	}
	b.Reload(next)
	return nil
}

// WatchConfig reloads column synonym overrides when the config file changes.
// Returns a stop function; with no config file it is a no-op.
func (b *Bridge) WatchConfig(ctx context.Context) func() {
	cfg, _ := b.snapshot()
	if cfg.Path == "" {
		return func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.Warn("config watch unavailable", "error", err)
		return func() {}
	}
	// Watch the directory: editors replace the file, which would drop a
	// watch on the path itself.
	if err := watcher.Add(filepath.Dir(cfg.Path)); err != nil {
		b.logger.Warn("config watch unavailable", "error", err)
		watcher.Close()
		return func() {}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != cfg.Path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := b.reloadFromFile(); err != nil {
					b.logger.Warn("config reload failed, keeping previous snapshot", "error", err)
					continue
				}
				next, _ := b.snapshot()
				b.logger.Info("config reloaded", "synonyms", len(next.ColumnSynonyms))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("config watch error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }
}

// invokeRequest is the /invoke wire format.
type invokeRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// messageRequest is the /message wire format.
type messageRequest struct {
	Message string `json:"message"`
}

func (b *Bridge) handleInvoke(w http.ResponseWriter, r *http.Request) {
	cfg, dispatcher := b.snapshot()
	if !b.admit(w, r, cfg) {
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.writeError(w, output.ErrUsage("Invalid request body: "+err.Error()))
		return
	}

	res, err := dispatcher.Invoke(r.Context(), req.Method, req.Params, dispatch.Options{})
	if err != nil {
		var unknown *dispatch.UnknownMethodError
		if errors.As(err, &unknown) {
			err = output.ErrUsage(unknown.Error())
		}
		b.writeError(w, err)
		return
	}
	b.writeResult(w, res)
}

func (b *Bridge) handleMessage(w http.ResponseWriter, r *http.Request) {
	cfg, dispatcher := b.snapshot()
	if !b.admit(w, r, cfg) {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.writeError(w, output.ErrUsage("Invalid request body: "+err.Error()))
		return
	}

	acts, err := interpretMessage(r.Context(), b.app, cfg, req.Message)
	if err != nil {
		b.writeError(w, err)
		return
	}

	results := make([]ActionResult, 0, len(acts))
	for _, a := range acts {
		res, err := dispatcher.Apply(r.Context(), a, dispatch.Options{})
		item := ActionResult{Action: a}
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Data = res.Data
			item.Label = res.Label
			if res.Undo != nil {
				item.Undo = res.Undo.Token
			}
		}
		results = append(results, item)
	}
	b.writeResult(w, &dispatch.Result{
		Data:  results,
		Label: fmt.Sprintf("%d action(s)", len(results)),
	})
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// admit enforces the shared token and the per-caller rate limit.
func (b *Bridge) admit(w http.ResponseWriter, r *http.Request, cfg *config.Config) bool {
	if cfg.ServeToken == "" {
		b.writeError(w, output.ErrAuth("Bridge has no serve_token configured; refusing requests"))
		return false
	}
	if r.Header.Get(TokenHeader) != cfg.ServeToken {
		b.writeError(w, output.ErrAuth("Invalid or missing "+TokenHeader+" header"))
		return false
	}

	key := callerKey(r)
	if !b.limiter.Allow(key) {
		retrySecs := int(b.limiter.RetryAfter(key).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
		b.writeError(w, output.ErrRateLimit(retrySecs))
		return false
	}
	return true
}

// callerKey identifies a caller for rate limiting by remote host.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (b *Bridge) writeResult(w http.ResponseWriter, res *dispatch.Result) {
	resp := &output.Response{OK: true, Data: res.Data, Summary: res.Label}
	if res.Undo != nil {
		resp.Meta = map[string]any{"undo_token": res.Undo.Token}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (b *Bridge) writeError(w http.ResponseWriter, err error) {
	e := output.AsError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(e.Code))
	_ = json.NewEncoder(w).Encode(&output.ErrorResponse{
		OK:    false,
		Error: e.Message,
		Code:  e.Code,
		Hint:  e.Hint,
	})
}

func httpStatusFor(code string) int {
	switch code {
	case output.CodeUsage, output.CodeAmbiguous:
		return http.StatusBadRequest
	case output.CodeAuth:
		return http.StatusUnauthorized
	case output.CodeForbidden:
		return http.StatusForbidden
	case output.CodeNotFound, output.CodeUndoEmpty:
		return http.StatusNotFound
	case output.CodeRateLimit:
		return http.StatusTooManyRequests
	case output.CodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}
