package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"laplace/internal/lapp"
)

// Server holds the dependencies every handler needs: the lapp registry, the
// admin path prefix, and the gossip factory wired into RunServiceIfNeeded.
// Grounded on REPRAM's HTTPServer struct (cmd/repram/main.go), which bundles
// its cluster node and config the same way.
type Server struct {
	Manager       *lapp.Manager
	AdminPrefix   string
	GossipFactory lapp.GossipFactory
	upgrader      websocket.Upgrader
}

// NewServer constructs a Server. adminPrefix is the path segment mounting
// the management API, e.g. "/admin" — routes are registered at
// adminPrefix+"/lapps" etc.
func NewServer(mgr *lapp.Manager, adminPrefix string, gossipFactory lapp.GossipFactory) *Server {
	return &Server{
		Manager:       mgr,
		AdminPrefix:   adminPrefix,
		GossipFactory: gossipFactory,
		upgrader:      websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

// Router builds the mux.Router mounting both the management API and the
// per-lapp proxy surface, following REPRAM's Router() method
// (cmd/repram/main.go) of building one *mux.Router per process rather than
// using the default ServeMux.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc(s.AdminPrefix+"/lapps", s.handleListLapps).Methods(http.MethodGet)
	r.HandleFunc(s.AdminPrefix+"/lapp/update", s.handleUpdateLapp).Methods(http.MethodPost)
	r.HandleFunc(s.AdminPrefix+"/lapp/add", s.handleAddLapp).Methods(http.MethodPost)

	r.HandleFunc("/{lapp}/ws", s.handleWebSocket)
	r.PathPrefix("/{lapp}/").HandlerFunc(s.handleProcessHTTP)
	r.HandleFunc("/{lapp}", s.handleProcessHTTP)

	return r
}
