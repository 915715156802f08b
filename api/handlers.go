package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hyperdot/hyperdot-node/log"
)

type handler struct {
	backend Backend
	logger  *log.Logger
}

// chainLister is implemented by engines that know which chains they serve.
type chainLister interface {
	Chains() []string
}

func (h *handler) runQuery(w http.ResponseWriter, r *http.Request) {
	engine := chi.URLParam(r, "engine")

	var req RunQueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: decode body: %v", ErrBadRequest, err))
		return
	}
	switch {
	case req.Engine != "" && req.Engine != engine:
		h.writeError(w, r, fmt.Errorf("%w: engine %s does not match route engine %s", ErrBadRequest, req.Engine, engine))
		return
	case req.Chain == "":
		h.writeError(w, r, fmt.Errorf("%w: chain is empty", ErrBadRequest))
		return
	case strings.TrimSpace(req.Query) == "":
		h.writeError(w, r, fmt.Errorf("%w: query is empty", ErrBadRequest))
		return
	}

	rows, err := h.backend.Query(r.Context(), engine, req.Chain, req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RunQueryResponse{
		Meta: success("run query success"),
		Rows: rows,
	})
}

func (h *handler) getScheme(w http.ResponseWriter, r *http.Request) {
	engine, chain := chi.URLParam(r, "engine"), chi.URLParam(r, "chain")
	tables, err := h.backend.Schema(r.Context(), engine, chain)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SchemeResponse{
		Meta:   success(fmt.Sprintf("get %s %s scheme success", chain, engine)),
		Engine: engine,
		Chain:  chain,
		Tables: tables,
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *handler) listDataEngines(w http.ResponseWriter, _ *http.Request) {
	engines := []DataEngine{}
	for _, e := range h.backend.Engines() {
		info := DataEngine{Name: e.Name(), Chains: []string{}}
		if l, ok := e.(chainLister); ok {
			info.Chains = append(info.Chains, l.Chains()...)
			sort.Strings(info.Chains)
		}
		engines = append(engines, info)
	}
	writeJSON(w, http.StatusOK, ListDataEnginesResponse{
		Meta:    success("list dataengines success"),
		Engines: engines,
	})
}
