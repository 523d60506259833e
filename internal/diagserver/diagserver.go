// Package diagserver pushes decoded diagnostics and inferred types for
// one source file at a time over a websocket, for editor integration
// that wants a build's results without speaking the rest of the
// Language Server Protocol.
package diagserver

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"nettle/internal/arena"
	"nettle/internal/astbuild"
	"nettle/internal/errors"
	"nettle/internal/irprint"
	"nettle/internal/lexer"
	"nettle/internal/lower"
	"nettle/internal/parser"
	"nettle/internal/typeinfer"
)

// Request is one compile-and-check request from a connected editor.
type Request struct {
	URI    string `json:"uri"`
	Source string `json:"source"`
}

// Diagnostic carries just enough of LSP's Diagnostic shape for an
// editor to render a squiggle.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// Response is pushed back once per Request. IR is empty when the
// request produced a diagnostic instead of a module.
type Response struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	IR          string       `json:"ir,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades each incoming HTTP request to a websocket and
// answers every Request it receives on that connection with a
// Response, until the client disconnects.
type Server struct{}

func New() *Server { return &Server{} }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("diagserver: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("diagserver: read error: %v", err)
			}
			return
		}

		if err := conn.WriteJSON(s.check(req)); err != nil {
			log.Printf("diagserver: write error: %v", err)
			return
		}
	}
}

// check runs the front end and, on success, lowering and type
// inference, over one document's text.
func (s *Server) check(req Request) Response {
	toks := lexer.NewScanner(req.Source).ScanTokens()
	b := astbuild.New(arena.New())
	p := parser.New(toks, req.URI, b)
	if err := p.Parse(); err != nil {
		return Response{URI: req.URI, Diagnostics: []Diagnostic{toDiagnostic(err)}}
	}

	m := lower.Lower(b.Finish())
	types := typeinfer.Typecheck(m)

	return Response{
		URI: req.URI,
		IR:  irprint.New().WithTypes(types).Print(m),
	}
}

func toDiagnostic(err error) Diagnostic {
	ne, ok := err.(*errors.NettleError)
	if !ok {
		return Diagnostic{Message: err.Error(), Source: "nettle"}
	}
	return Diagnostic{
		Line:    ne.Location.Line,
		Column:  ne.Location.Column,
		Message: ne.Message,
		Source:  "nettle",
	}
}
