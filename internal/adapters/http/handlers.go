package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/models"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// uriFrom rebuilds the memory URI from the {scheme}/{path...} wildcards.
// ServeMux collapses the "//" of a raw URI, so the scheme separator is
// never part of the request path.
func uriFrom(r *http.Request) string {
	return memory.BuildURI(r.PathValue("scheme"), r.PathValue("path"))
}

func queryInt(r *http.Request, key string) (*int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", memory.ErrInvalidArgument, key)
	}
	return &n, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

type createMemoryBody struct {
	URI        string         `json:"uri"`
	Content    string         `json:"content"`
	Priority   *int           `json:"priority"`
	Disclosure string         `json:"disclosure"`
	Metadata   map[string]any `json:"metadata"`
}

type updateMemoryBody struct {
	Content    *string        `json:"content"`
	Append     bool           `json:"append"`
	OldText    *string        `json:"old_text"`
	NewText    *string        `json:"new_text"`
	Priority   *int           `json:"priority"`
	Disclosure *string        `json:"disclosure"`
	Metadata   map[string]any `json:"metadata"`
}

type relationBody struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Type     string   `json:"type"`
	Strength *float64 `json:"strength"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if uri := q.Get("uri"); uri != "" {
		s.getMemory(w, r, uri)
		return
	}

	pmin, err := queryInt(r, "priority_min")
	if err != nil {
		writeError(w, err)
		return
	}
	pmax, err := queryInt(r, "priority_max")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	memories, err := s.svc.Memories.ListMemories(r.Context(), primary.ListRequest{
		URIPrefix:   memory.DomainPrefix(q.Get("domain")),
		PriorityMin: pmin,
		PriorityMax: pmax,
		Status:      q.Get("status"),
		Limit:       intOr(limit, primary.DefaultListLimit),
		Offset:      intOr(offset, 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createMemoryBody
	if !decodeBody(w, r, &body) {
		return
	}

	m, err := s.svc.Memories.CreateMemory(r.Context(), primary.CreateMemoryRequest{
		URI:        body.URI,
		Content:    body.Content,
		Priority:   body.Priority,
		Disclosure: body.Disclosure,
		Metadata:   body.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.getMemory(w, r, uriFrom(r))
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request, uri string) {
	increment := true
	if raw := r.URL.Query().Get("access"); raw != "" {
		increment, _ = strconv.ParseBool(raw)
	}

	m, err := s.svc.Memories.GetMemory(r.Context(), uri, increment)
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeNotFound(w, "memory "+uri)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body updateMemoryBody
	if !decodeBody(w, r, &body) {
		return
	}
	uri := uriFrom(r)

	m, err := s.svc.Memories.UpdateMemory(r.Context(), primary.UpdateMemoryRequest{
		URI:        uri,
		Content:    body.Content,
		Priority:   body.Priority,
		Disclosure: body.Disclosure,
		Metadata:   body.Metadata,
		Append:     body.Append,
		OldText:    body.OldText,
		NewText:    body.NewText,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeNotFound(w, "memory "+uri)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	uri := uriFrom(r)
	ok, err := s.svc.Memories.DeleteMemory(r.Context(), uri, !queryBool(r, "force"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeNotFound(w, "memory "+uri)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "uri": uri})
}

func (s *Server) handleSetPriority(w http.ResponseWriter, r *http.Request) {
	p, err := queryInt(r, "priority")
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, fmt.Errorf("%w: priority is required", memory.ErrInvalidArgument))
		return
	}
	uri := uriFrom(r)
	m, err := s.svc.Memories.SetPriority(r.Context(), uri, *p)
	s.writeMemory(w, uri, m, err)
}

func (s *Server) handleDeprecate(w http.ResponseWriter, r *http.Request) {
	uri := uriFrom(r)
	m, err := s.svc.Memories.DeprecateMemory(r.Context(), uri, r.URL.Query().Get("reason"))
	s.writeMemory(w, uri, m, err)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	uri := uriFrom(r)
	m, err := s.svc.Memories.ArchiveMemory(r.Context(), uri)
	s.writeMemory(w, uri, m, err)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	uri := uriFrom(r)
	m, err := s.svc.Memories.RestoreMemory(r.Context(), uri)
	s.writeMemory(w, uri, m, err)
}

func (s *Server) writeMemory(w http.ResponseWriter, uri string, m *models.Memory, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeNotFound(w, "memory "+uri)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pmin, err := queryInt(r, "priority_min")
	if err != nil {
		writeError(w, err)
		return
	}
	pmax, err := queryInt(r, "priority_max")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	memories, err := s.svc.Memories.SearchMemories(r.Context(), primary.SearchRequest{
		Query:       q.Get("q"),
		URIPrefix:   memory.DomainPrefix(q.Get("domain")),
		PriorityMin: pmin,
		PriorityMax: pmax,
		Status:      q.Get("status"),
		Limit:       intOr(limit, primary.DefaultSearchLimit),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q.Get("q"), "memories": memories})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Transfer.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	uri := uriFrom(r)
	versions, err := s.svc.Memories.GetVersions(r.Context(), uri, intOr(limit, primary.DefaultVersionsLimit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uri": uri, "versions": versions})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "version")
	if err != nil {
		writeError(w, err)
		return
	}
	if n == nil {
		writeError(w, fmt.Errorf("%w: version is required", memory.ErrInvalidArgument))
		return
	}
	uri := uriFrom(r)

	m, err := s.svc.Memories.RollbackToVersion(r.Context(), uri, *n, "")
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeNotFound(w, fmt.Sprintf("version %d of %s", *n, uri))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	v1, err := queryInt(r, "version1")
	if err != nil {
		writeError(w, err)
		return
	}
	v2, err := queryInt(r, "version2")
	if err != nil {
		writeError(w, err)
		return
	}
	if v1 == nil || v2 == nil {
		writeError(w, fmt.Errorf("%w: version1 and version2 are required", memory.ErrInvalidArgument))
		return
	}
	uri := uriFrom(r)

	diff, err := s.svc.Memories.DiffVersions(r.Context(), uri, *v1, *v2)
	if err != nil {
		writeError(w, err)
		return
	}
	if diff == nil {
		writeNotFound(w, fmt.Sprintf("versions %d and %d of %s", *v1, *v2, uri))
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	uri := uriFrom(r)
	rels, err := s.svc.Relations.GetRelations(r.Context(), uri, r.URL.Query().Get("direction"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rels == nil {
		rels = []primary.RelationInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"uri": uri, "relations": rels})
}

func (s *Server) handleAddRelation(w http.ResponseWriter, r *http.Request) {
	var body relationBody
	if !decodeBody(w, r, &body) {
		return
	}
	strength := models.DefaultStrength
	if body.Strength != nil {
		strength = *body.Strength
	}

	rel, err := s.svc.Relations.AddRelation(r.Context(), body.Source, body.Target, body.Type, strength)
	if err != nil {
		writeError(w, err)
		return
	}
	if rel == nil {
		writeNotFound(w, "memory "+body.Source+" or "+body.Target)
		return
	}
	writeJSON(w, http.StatusOK, primary.RelationInfo{
		RelationType: rel.RelationType,
		Strength:     rel.Strength,
		Direction:    primary.DirectionOut,
		TargetURI:    body.Target,
	})
}

func (s *Server) handleRemoveRelation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	removed, err := s.svc.Relations.RemoveRelation(r.Context(), q.Get("source"), q.Get("target"), q.Get("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeNotFound(w, "relation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Transfer.ExportMemories(r.Context(), primary.ExportRequest{
		URIPrefix:        memory.DomainPrefix(r.URL.Query().Get("domain")),
		IncludeVersions:  queryBool(r, "include_versions"),
		IncludeRelations: queryBool(r, "include_relations"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}

	res, err := s.svc.Transfer.ImportMemories(r.Context(), primary.ImportRequest{
		Data:     raw,
		Strategy: r.URL.Query().Get("strategy"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req primary.CleanRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	res, err := s.svc.Transfer.CleanMemories(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	var in primary.HookInput
	if !decodeBody(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Hooks.Handle(r.Context(), in))
}
