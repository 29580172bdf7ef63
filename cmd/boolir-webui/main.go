package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/litsearch/boolir/pkg/common/config"
	"github.com/litsearch/boolir/pkg/decompose"
	"github.com/litsearch/boolir/pkg/experiments"
	"github.com/litsearch/boolir/pkg/index"
	"github.com/litsearch/boolir/pkg/mesh"
	"github.com/litsearch/boolir/pkg/qpp"
	"github.com/litsearch/boolir/pkg/query"
)

// Server serves the query inspection web UI over a single index.
type Server struct {
	cfg    *config.Config
	store  *index.Store
	parser query.Parser
}

// API response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type queryRequest struct {
	Query       string  `json:"query"`
	Smooth      bool    `json:"smooth"`
	IgnoreDates bool    `json:"ignoreDates"`
	ThetaAND    float64 `json:"thetaAnd"`
	ThetaOR     float64 `json:"thetaOr"`
	ThetaNOT    float64 `json:"thetaNot"`
	DateFrom    string  `json:"dateFrom"`
	DateTo      string  `json:"dateTo"`
}

type parseResult struct {
	Formatted string      `json:"formatted"`
	Tree      interface{} `json:"tree"`
}

type searchResult struct {
	Total     int      `json:"total"`
	Documents []string `json:"documents"`
}

var (
	port       = flag.Int("port", 8080, "Port to listen on")
	configFile = flag.String("config", "", "Configuration file path")
	indexPath  = flag.String("index", "", "Index directory (overrides config)")
	meshTree   = flag.String("mesh", "", "MeSH tree file (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *indexPath != "" {
		cfg.Index.Path = *indexPath
	}
	if *meshTree != "" {
		cfg.MeSH.TreeFile = *meshTree
	}
	if cfg.Index.Path == "" {
		log.Fatalf("No index path configured (set index.path or -index)")
	}
	if cfg.MeSH.TreeFile == "" {
		log.Fatalf("No MeSH tree file configured (set mesh.tree_file or -mesh)")
	}

	tree, err := mesh.LoadTree(cfg.MeSH.TreeFile)
	if err != nil {
		log.Fatalf("Failed to load MeSH tree: %v", err)
	}
	parser, err := query.NewPubmedQueryParser(tree)
	if err != nil {
		log.Fatalf("Failed to create parser: %v", err)
	}
	store, err := index.OpenStore(cfg.Index.Path)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer store.Close()

	server := &Server{cfg: cfg, store: store, parser: parser}

	// Set up routes
	router := mux.NewRouter()

	// Web pages
	router.HandleFunc("/", server.handleIndex).Methods("GET")

	// API endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/parse", server.handleParse).Methods("POST")
	api.HandleFunc("/format", server.handleFormat).Methods("POST")
	api.HandleFunc("/search", server.handleSearch).Methods("POST")
	api.HandleFunc("/decompose", server.handleDecompose).Methods("POST")
	api.HandleFunc("/qpp", server.handleQPP).Methods("POST")
	api.HandleFunc("/document/{pmid}", server.handleDocument).Methods("GET")
	api.HandleFunc("/stats", server.handleStats).Methods("GET")

	log.Printf("Starting web UI on port %d", *port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		}
	}
	return config.LoadConfig(configPath)
}

// Page handlers
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := indexTemplate.Execute(w, map[string]interface{}{
		"Title": "Boolean Query Workbench",
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// API handlers
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	node, err := s.parser.Parse(req.Query)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{
		Success: true,
		Data: parseResult{
			Formatted: node.Format(),
			Tree:      nodeToJSON(node),
		},
	})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	node, err := s.parser.Parse(req.Query)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{Success: true, Data: node.Format()})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	pmid := mux.Vars(r)["pmid"]

	fields, err := s.store.Get(r.Context(), pmid, nil)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{Success: true, Data: fields})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	experiment := experiments.NewRetrievalExperiment(s.store, s.parser, experiments.AdHocCollection(req.Query))
	experiment.IgnoreDates = req.IgnoreDates || s.cfg.Retrieval.IgnoreDates
	experiment.DateField = s.cfg.Retrieval.DateField

	topic := experiment.Collection().Topics[0]
	if req.DateFrom != "" && req.DateTo != "" {
		topic.DateFrom = req.DateFrom
		topic.DateTo = req.DateTo
	}

	ids, err := experiment.RetrieveTopic(r.Context(), topic)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{
		Success: true,
		Data:    searchResult{Total: len(ids), Documents: ids},
	})
}

func (s *Server) handleDecompose(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	evaluator, err := s.newEvaluator(req)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	node, err := s.parser.Parse(req.Query)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	topic := experiments.AdHocCollection(req.Query).Topics[0]
	if req.DateFrom != "" && req.DateTo != "" {
		topic.DateFrom = req.DateFrom
		topic.DateTo = req.DateTo
	}

	ids, err := evaluator.Evaluate(r.Context(), node, topic)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{
		Success: true,
		Data:    searchResult{Total: len(ids), Documents: ids},
	})
}

func (s *Server) newEvaluator(req queryRequest) (*decompose.Evaluator, error) {
	var evaluator *decompose.Evaluator
	if req.Smooth {
		thetaAND, thetaOR, thetaNOT := req.ThetaAND, req.ThetaOR, req.ThetaNOT
		if thetaAND == 0 && thetaNOT == 0 {
			thetaAND = s.cfg.Retrieval.ThetaAND
			thetaOR = s.cfg.Retrieval.ThetaOR
			thetaNOT = s.cfg.Retrieval.ThetaNOT
		}
		evaluator = decompose.NewSmoothEvaluator(s.store, s.parser, thetaAND, thetaOR, thetaNOT)
	} else {
		evaluator = decompose.NewEvaluator(s.store, s.parser)
	}
	evaluator.IgnoreDates = req.IgnoreDates || s.cfg.Retrieval.IgnoreDates
	evaluator.DateField = s.cfg.Retrieval.DateField
	evaluator.Workers = s.cfg.Retrieval.Workers

	if s.cfg.Cache.Enabled {
		cache, err := decompose.NewLeafCache(s.cfg.Cache.Directory,
			s.cfg.Cache.BloomCapacity, s.cfg.Cache.BloomFalsePositiveRate)
		if err != nil {
			return nil, err
		}
		evaluator.Cache = cache
	}
	return evaluator, nil
}

func (s *Server) handleQPP(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	node, err := s.parser.Parse(req.Query)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	results, err := qpp.Measure(r.Context(), s.store, s.parser, node, req.Query)
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{Success: true, Data: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.DocCount()
	if err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: err.Error()})
		return
	}

	s.sendJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"documents": count,
			"indexPath": s.cfg.Index.Path,
		},
	})
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSON(w, APIResponse{Success: false, Error: "invalid request body"})
		return req, false
	}
	if req.Query == "" {
		s.sendJSON(w, APIResponse{Success: false, Error: "missing query"})
		return req, false
	}
	return req, true
}

func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSON encoding error: %v", err)
	}
}

// nodeToJSON renders a parsed tree as nested maps for the UI.
func nodeToJSON(node query.Node) interface{} {
	switch n := node.(type) {
	case *query.OperatorNode:
		children := make([]interface{}, len(n.Children))
		for i, child := range n.Children {
			children[i] = nodeToJSON(child)
		}
		return map[string]interface{}{
			"operator": n.Operator,
			"children": children,
		}
	case *query.AtomNode:
		return map[string]interface{}{
			"atom":  n.Format(),
			"field": n.Field.Name,
		}
	default:
		return nil
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
textarea { width: 100%; height: 5em; font-family: monospace; }
pre { background: #f4f4f4; padding: 1em; overflow-x: auto; }
button { margin-right: 0.5em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<textarea id="query" placeholder="(aspirin[tiab] AND Myocardial Infarction[Mesh])"></textarea>
<p>
<button onclick="call('parse')">Parse</button>
<button onclick="call('search')">Search</button>
<button onclick="call('decompose')">Decompose</button>
<button onclick="call('qpp')">QPP</button>
<label><input type="checkbox" id="smooth"> relaxed operators</label>
</p>
<pre id="output"></pre>
<script>
async function call(op) {
  const body = {
    query: document.getElementById('query').value,
    smooth: document.getElementById('smooth').checked
  };
  const resp = await fetch('/api/' + op, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body)
  });
  const data = await resp.json();
  document.getElementById('output').textContent = JSON.stringify(data, null, 2);
}
</script>
</body>
</html>
`))
