// Package server exposes the sync subsystem over JSON-RPC 2.0: an HTTP
// bridge for request/response methods and a WebSocket channel that
// additionally carries server-push notification events.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/unitime/unitime/internal/notify"
	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
)

// JSON-RPC error codes mirroring the fetch failure taxonomy.
const (
	codeResourceUnavailable = jrpc2.Code(-32001)
	codeNoConnectivity      = jrpc2.Code(-32002)
	codeBadPayload          = jrpc2.Code(-32003)
	codeInvalidParams       = jrpc2.Code(-32602)
)

// RefreshOutcome reports how one resource class fared during a forced
// refresh.
type RefreshOutcome struct {
	Resource string `json:"resource"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Deps are the collaborators the RPC methods operate on. Refresh is
// supplied by the daemon so the server stays ignorant of refresh
// orchestration.
type Deps struct {
	Client   *schedlib.Client
	Settings *notify.SettingsStore
	Refresh  func(ctx context.Context) []RefreshOutcome
	// ClearCache purges cached responses, keeping protected keys.
	ClearCache func()
	Version    string
}

// Server hosts the JSON-RPC bridge and the WebSocket event endpoint.
type Server struct {
	log     logger.Logger
	deps    Deps
	hub     *Hub
	methods handler.Map
	httpSrv *http.Server
}

// New creates a Server with all methods registered.
func New(log logger.Logger, deps Deps) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Server{
		log:  log,
		deps: deps,
		hub:  NewHub(log),
	}
	s.methods = handler.Map{
		"system.getVersion": handler.New(s.systemGetVersion),
		"schedule.week":     handler.New(s.scheduleWeek),
		"schedule.day":      handler.New(s.scheduleDay),
		"news.list":         handler.New(s.newsList),
		"groups.list":       handler.New(s.groupsList),
		"slots.list":        handler.New(s.slotsList),
		"settings.get":      handler.New(s.settingsGet),
		"settings.set":      handler.New(s.settingsSet),
		"sync.refresh":      handler.New(s.syncRefresh),
		"cache.clear":       handler.New(s.cacheClear),
	}
	return s
}

// Hub returns the event hub so the daemon can publish push events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves HTTP on addr until ctx is cancelled. Blocking.
func (s *Server) Start(ctx context.Context, addr string) error {
	bridge := jhttp.NewBridge(s.methods, nil)
	defer bridge.Close()

	mux := http.NewServeMux()
	mux.Handle("/rpc", bridge)
	mux.HandleFunc("/events", s.handleEvents)

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.Info("server: listening on %s", addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// invalidParams wraps a validation error in the standard invalid-params
// code.
func invalidParams(err error) error {
	return jrpc2.Errorf(codeInvalidParams, "%s", err)
}

func invalidParamsMsg(msg string) error {
	return jrpc2.Errorf(codeInvalidParams, "%s", msg)
}

// fetchErr converts a fetch failure into a JSON-RPC error carrying the
// taxonomy kind and stale-cache availability.
func fetchErr(err error) error {
	var ferr *schedlib.FetchError
	code := codeResourceUnavailable
	switch {
	case errors.Is(err, schedlib.ErrNoConnectivity):
		code = codeNoConnectivity
	case errors.Is(err, schedlib.ErrMalformedPayload), errors.Is(err, schedlib.ErrUnexpectedFormat):
		code = codeBadPayload
	}
	if errors.As(err, &ferr) && ferr.HasStale {
		return jrpc2.Errorf(code, "%s (cached data available)", err)
	}
	return jrpc2.Errorf(code, "%s", err)
}
