package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"laplace/internal/lapp"
	"laplace/internal/wire"
)

// errReadingBody distinguishes a failure to read the inbound request body
// (the client's fault, 400) from a failure inside the guest's process_http
// (the lapp's fault, 500) — both surface from processHTTP as a plain error.
var errReadingBody = errors.New("httpapi: reading request body")

// httpVersionOf maps Go's net/http ProtoMajor/ProtoMinor to the wire's
// closed HTTPVersion enum, spec.md §4.2.
func httpVersionOf(r *http.Request) wire.HTTPVersion {
	switch {
	case r.ProtoMajor == 3:
		return wire.HTTPVersion30
	case r.ProtoMajor == 2:
		return wire.HTTPVersion20
	case r.ProtoMajor == 1 && r.ProtoMinor == 1:
		return wire.HTTPVersion11
	case r.ProtoMajor == 1 && r.ProtoMinor == 0:
		return wire.HTTPVersion10
	default:
		return wire.HTTPVersion09
	}
}

func toWireHeaders(h http.Header) []wire.Header {
	out := make([]wire.Header, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, wire.Header{Name: []byte(name), Value: []byte(v)})
		}
	}
	return out
}

// httpProcessor is the narrow slice of *lapp.Instance this proxy drives,
// kept as an interface (matching internal/lapp/actor.go's routable) so the
// request-building and dispatch logic can be tested against a fake guest
// instead of a real wazero instance.
type httpProcessor interface {
	ProcessHTTP(ctx context.Context, req *wire.Request) (*wire.Response, error)
}

// buildGuestRequest translates an inbound *http.Request into the wire
// shape a guest's process_http export expects. The guest sees the full,
// unstripped request URI — spec.md §8 scenario 1 (GET /echo/hello ->
// "Echo /echo/hello") and laplace_server/src/convert.rs both forward the
// request as received, lapp prefix included.
func buildGuestRequest(r *http.Request, body []byte) *wire.Request {
	uri := r.URL.Path
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return &wire.Request{
		Method:  r.Method,
		URI:     uri,
		Version: httpVersionOf(r),
		Headers: toWireHeaders(r.Header),
		Body:    body,
	}
}

// processHTTP reads r's body, builds the guest-facing request, and hands
// it to proc — factored out of handleProcessHTTP so it can be exercised
// directly in tests against a fake httpProcessor.
func processHTTP(ctx context.Context, proc httpProcessor, r *http.Request) (*wire.Response, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errReadingBody, err)
	}
	return proc.ProcessHTTP(ctx, buildGuestRequest(r, body))
}

// handleProcessHTTP resolves /{lapp}/... to a lapp_name, checks it is
// enabled and holds ClientHttp, and proxies the request into C3's
// process_http — spec.md §2's "Control flow" paragraph.
func (s *Server) handleProcessHTTP(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["lapp"]
	l, err := s.Manager.Lapp(name)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if err := s.Manager.CheckEnabledAndAllow(l, lapp.PermissionClientHTTP); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	inst, err := l.Instance()
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	resp, err := processHTTP(r.Context(), inst, r)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errReadingBody) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	for _, h := range resp.Headers {
		w.Header().Add(string(h.Name), string(h.Value))
	}
	w.WriteHeader(int(resp.Status))
	w.Write(resp.Body)
}

// handleWebSocket resolves /{lapp}/ws, checks Websocket is enabled and
// allowed, lazily spawns the lapp's C6 actor, and upgrades the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["lapp"]
	l, err := s.Manager.Lapp(name)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if err := s.Manager.CheckEnabledAndAllow(l, lapp.PermissionWebsocket); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	actor, err := s.Manager.RunServiceIfNeeded(r.Context(), l, s.GossipFactory)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	serveWebSocket(&s.upgrader, actor, name, w, r)
}
