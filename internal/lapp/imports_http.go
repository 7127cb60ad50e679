package lapp

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"

	"laplace/internal/logging"
	"laplace/internal/wasmhost"
	"laplace/internal/wire"
)

// httpHost backs invoke_http: a shared client plus the method/host
// allow-lists and timeout declared in a lapp's config.toml §network.http.
type httpHost struct {
	lapp    string
	client  *http.Client
	methods []string // nil/empty means "All"
	hosts   []string // nil/empty means "All"
	timeout time.Duration
}

func newHTTPHost(lapp string, methods, hosts []string, timeoutMS int) *httpHost {
	timeout := time.Duration(timeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpHost{
		lapp:    lapp,
		client:  &http.Client{},
		methods: methods,
		hosts:   hosts,
		timeout: timeout,
	}
}

func allowListPermits(allowList []string, candidate string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, v := range allowList {
		if strings.EqualFold(v, candidate) {
			return true
		}
	}
	return false
}

// invoke performs req under the host's allow-lists and timeout, returning
// either a decoded wire Response or a populated InvokeError.
func (h *httpHost) invoke(ctx context.Context, req *wire.Request) (*wire.Response, *wire.InvokeError) {
	if !allowListPermits(h.methods, req.Method) {
		return nil, &wire.InvokeError{Kind: wire.InvokeErrForbiddenMethod, Method: req.Method}
	}

	parsedHost := req.URI
	if u, err := parseHostOnly(req.URI); err == nil {
		parsedHost = u
	}
	if !allowListPermits(h.hosts, parsedHost) {
		return nil, &wire.InvokeError{Kind: wire.InvokeErrForbiddenHost, Host: parsedHost}
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URI, strings.NewReader(string(req.Body)))
	if err != nil {
		return nil, &wire.InvokeError{Kind: wire.InvokeErrFailRequest, Message: err.Error()}
	}
	for _, hdr := range req.Headers {
		httpReq.Header.Add(string(hdr.Name), string(hdr.Value))
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &wire.InvokeError{Kind: wire.InvokeErrFailRequest, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &wire.InvokeError{Kind: wire.InvokeErrFailRequest, HasStatus: true, Status: int32(resp.StatusCode), Message: err.Error()}
	}

	headers := make([]wire.Header, 0, len(resp.Header))
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, wire.Header{Name: []byte(name), Value: []byte(v)})
		}
	}

	return &wire.Response{
		Status:  uint16(resp.StatusCode),
		Version: wire.HTTPVersion11,
		Headers: headers,
		Body:    body,
	}, nil
}

func parseHostOnly(rawURL string) (string, error) {
	const schemeSep = "://"
	i := strings.Index(rawURL, schemeSep)
	if i < 0 {
		return rawURL, nil
	}
	rest := rawURL[i+len(schemeSep):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return rest, nil
}

// httpImports builds the invoke_http closure wired into the guest's import
// table. The Bridge is built from the calling module on every invocation;
// see the comment on dbImports for why it can't be captured up front.
func httpImports(host *httpHost) func(context.Context, api.Module, uint64) uint64 {
	return func(callCtx context.Context, mod api.Module, slice uint64) uint64 {
		bridge, err := bridgeFromModule(mod)
		if err != nil {
			return 0
		}
		raw, err := bridge.SliceToVec(wasmhost.Unpack(slice))
		if err != nil {
			return packInvokeResult(callCtx, bridge, nil, &wire.InvokeError{Kind: wire.InvokeErrDeserialize, Message: err.Error()})
		}
		req, err := wire.DecodeRequest(raw)
		if err != nil {
			return packInvokeResult(callCtx, bridge, nil, &wire.InvokeError{Kind: wire.InvokeErrDeserialize, Message: err.Error()})
		}

		resp, invokeErr := host.invoke(callCtx, req)
		if invokeErr != nil {
			logging.WithLapp(host.lapp, logging.LevelWarn, "invoke_http denied/failed: %v", invokeErr)
		}
		return packInvokeResult(callCtx, bridge, resp, invokeErr)
	}
}

func packInvokeResult(ctx context.Context, bridge *wasmhost.Bridge, resp *wire.Response, invokeErr *wire.InvokeError) uint64 {
	out, err := bridge.BytesToSlice(ctx, wire.EncodeInvokeResult(resp, invokeErr))
	if err != nil {
		return 0
	}
	return out.Pack()
}
