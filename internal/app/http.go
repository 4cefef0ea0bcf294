package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"aula/api/internal/auth"
	"aula/api/internal/content"
	"aula/api/internal/observability"
	"aula/api/internal/rbac"
)

// Identity headers set by the upstream identity provider.
const (
	headerUserID        = "X-User-Id"
	headerUserRole      = "X-User-Role"
	headerOrganization  = "X-Organization-Id"
	headerAccountStatus = "X-Account-Status"
)

type HTTPOptions struct {
	CORSOrigin     string
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	// TokenSecret switches identity from the trusted headers to signed
	// bearer tokens.
	TokenSecret []byte
}

type HTTPServer struct {
	service *Service
	opts    HTTPOptions
}

func NewHTTPServer(service *Service, opts HTTPOptions) *HTTPServer {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	return &HTTPServer{service: service, opts: opts}
}

func (s *HTTPServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(recordRoute)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	if s.opts.MetricsHandler != nil {
		router.Handle("/metrics", s.opts.MetricsHandler).Methods(http.MethodGet)
	}

	// Routes are registered on the root router so a path that exists under
	// another method reaches MethodNotAllowedHandler.
	router.HandleFunc("/api/activity", s.handleActivity).Methods(http.MethodGet)

	const base = "/api/content"
	router.HandleFunc(base, s.handleList).Methods(http.MethodGet)
	router.HandleFunc(base, s.handleCreate).Methods(http.MethodPost)
	router.HandleFunc(base+"/search", s.handleSearch).Methods(http.MethodGet)
	router.HandleFunc(base+"/stats", s.handleStats).Methods(http.MethodGet)
	router.HandleFunc(base+"/pending", s.handleQueue(s.service.ListPending)).Methods(http.MethodGet)
	router.HandleFunc(base+"/edit-requests", s.handleQueue(s.service.ListEditRequests)).Methods(http.MethodGet)
	router.HandleFunc(base+"/trash", s.handleQueue(s.service.ListTrash)).Methods(http.MethodGet)
	router.HandleFunc(base+"/status/{status}", s.handleQueue(s.service.ListByStatus)).Methods(http.MethodGet)
	router.HandleFunc(base+"/by-name/{kind}/{name}", s.handleFindByName).Methods(http.MethodGet)

	router.HandleFunc(base+"/{id}", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}", s.handleUpdate).Methods(http.MethodPatch)
	router.HandleFunc(base+"/{id}", s.handleSoftDelete).Methods(http.MethodDelete)

	router.HandleFunc(base+"/{id}/submit", s.handleTransition(s.service.SubmitForReview)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/approve", s.handleTransition(s.service.Approve)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/reject", s.handleReasonTransition(s.service.Reject)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/request-changes", s.handleReasonTransition(s.service.RequestChanges)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/request-edit", s.handleReasonTransition(s.service.RequestEdit)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/approve-edit-request", s.handleTransition(s.service.ApproveEditRequest)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/reject-edit-request", s.handleTransition(s.service.RejectEditRequest)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/archive", s.handleReasonTransition(s.service.Archive)).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/restore", s.handleTransition(s.service.Restore)).Methods(http.MethodPost)

	router.HandleFunc(base+"/{id}/collaborators", s.handleAddCollaborator).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id}/collaborators/{userId}", s.handleRemoveCollaborator).Methods(http.MethodDelete)

	router.HandleFunc(base+"/{id}/children", s.handleChildren).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}/history", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}/revisions", s.handleRevisions).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}/revisions/{hash}", s.handleRevisionContent).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}/snapshots", s.handleSnapshots).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}/snapshots/{version}", s.handleSnapshot).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id}/export", s.handleExport).Methods(http.MethodPost)

	return s.withMiddleware(router)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.service.ListForCaller(r.Context(), caller, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(items, opts))
}

func (s *HTTPServer) handleQueue(list func(context.Context, content.Caller, ListOptions) ([]content.Item, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		opts, err := listOptions(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		opts.Status = mux.Vars(r)["status"]
		items, err := list(r.Context(), caller, opts)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(items, opts))
	}
}

func (s *HTTPServer) handleChildren(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.service.ListChildren(r.Context(), caller, mux.Vars(r)["id"], opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(items, opts))
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body CreateInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	item, err := s.service.Create(r.Context(), caller, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	includeDeleted, err := queryBool(r, "includeDeleted")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.service.FindByID(r.Context(), caller, mux.Vars(r)["id"], includeDeleted)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleFindByName(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	item, err := s.service.FindByName(r.Context(), caller, vars["kind"], vars["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UpdateInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	item, err := s.service.Update(r.Context(), caller, mux.Vars(r)["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	item, err := s.service.SoftDelete(r.Context(), caller, mux.Vars(r)["id"], body.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleTransition(run func(context.Context, content.Caller, string) (content.Item, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		item, err := run(r.Context(), caller, mux.Vars(r)["id"])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *HTTPServer) handleReasonTransition(run func(context.Context, content.Caller, string, string) (content.Item, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		item, err := run(r.Context(), caller, mux.Vars(r)["id"], body.Reason)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *HTTPServer) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	item, err := s.service.AddCollaborator(r.Context(), caller, mux.Vars(r)["id"], body.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	item, err := s.service.RemoveCollaborator(r.Context(), caller, vars["id"], vars["userId"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	history, err := s.service.History(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *HTTPServer) handleRevisions(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	revisions, err := s.service.Revisions(r.Context(), caller, mux.Vars(r)["id"], limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
}

func (s *HTTPServer) handleRevisionContent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	snapshot, revision, changes, err := s.service.RevisionContent(r.Context(), caller, vars["id"], vars["hash"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revision": revision,
		"content":  snapshot,
		"changes":  changes,
	})
}

func (s *HTTPServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	snapshots, err := s.service.Snapshots(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	version, err := strconv.ParseInt(vars["version"], 10, 64)
	if err != nil {
		s.fail(w, r, content.Validationf("version must be a positive integer"))
		return
	}
	item, err := s.service.Snapshot(r.Context(), caller, vars["id"], version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Format string `json:"format"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if body.Format == "" {
		body.Format = r.URL.Query().Get("format")
	}
	result, err := s.service.Export(r.Context(), caller, mux.Vars(r)["id"], body.Format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	response, err := s.service.Search(r.Context(), caller, strings.TrimSpace(query.Get("q")), query.Get("kind"), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	stats, err := s.service.Stats(r.Context(), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recent, err := s.service.Activity(r.Context(), caller, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recent})
}

// caller resolves the request identity. A request without identity is
// anonymous; a partial or unknown identity is refused.
func (s *HTTPServer) caller(w http.ResponseWriter, r *http.Request) (content.Caller, bool) {
	var (
		caller content.Caller
		err    error
	)
	if len(s.opts.TokenSecret) > 0 {
		caller, err = callerFromToken(r, s.opts.TokenSecret)
	} else {
		caller, err = callerFromRequest(r)
	}
	if err != nil {
		s.fail(w, r, err)
		return content.Caller{}, false
	}
	return caller, true
}

func callerFromRequest(r *http.Request) (content.Caller, error) {
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	rawRole := strings.TrimSpace(r.Header.Get(headerUserRole))
	if userID == "" && rawRole == "" {
		return content.Anonymous(), nil
	}
	if userID == "" || rawRole == "" {
		return content.Caller{}, content.Forbiddenf("incomplete identity")
	}
	role, err := rbac.Parse(rawRole)
	if err != nil {
		return content.Caller{}, content.Forbiddenf("%v", err)
	}
	return content.Caller{
		ID:             userID,
		Role:           role,
		OrganizationID: strings.TrimSpace(r.Header.Get(headerOrganization)),
		AccountStatus:  strings.TrimSpace(r.Header.Get(headerAccountStatus)),
	}, nil
}

func callerFromToken(r *http.Request, secret []byte) (content.Caller, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return content.Anonymous(), nil
	}
	claims, err := auth.ParseToken(secret, token)
	if err != nil {
		return content.Caller{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
	}
	role, err := rbac.Parse(claims.Role)
	if err != nil {
		return content.Caller{}, content.Forbiddenf("%v", err)
	}
	return content.Caller{
		ID:             claims.Subject,
		Role:           role,
		OrganizationID: claims.OrganizationID,
		AccountStatus:  claims.AccountStatus,
	}, nil
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).
			WithField("request_id", requestIDFrom(r.Context())).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func listOptions(r *http.Request) (ListOptions, error) {
	page, err := pageFromQuery(r)
	if err != nil {
		return ListOptions{}, err
	}
	includeDeleted, err := queryBool(r, "includeDeleted")
	if err != nil {
		return ListOptions{}, err
	}
	return ListOptions{
		Kind:           r.URL.Query().Get("kind"),
		IncludeDeleted: includeDeleted,
		Page:           page,
	}, nil
}

func listResponse(items []content.Item, opts ListOptions) map[string]any {
	page := opts.Page.Normalize()
	return map[string]any{
		"items":  items,
		"limit":  page.Limit,
		"offset": page.Offset,
	}
}

func pageFromQuery(r *http.Request) (content.Page, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return content.Page{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return content.Page{}, err
	}
	return content.Page{Limit: limit, Offset: offset}, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, content.Validationf("%s must be a non-negative integer", key)
	}
	return value, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, content.Validationf("%s must be true or false", key)
	}
	return value, nil
}

type requestIDKey struct{}

// routeLabel carries the matched route template from the router back out
// to the middleware, for metric labels.
type routeLabel struct {
	template string
}

type routeLabelKey struct{}

func recordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeLabelKey{}).(*routeLabel); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					label.template = template
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		label := &routeLabel{template: "unmatched"}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = context.WithValue(ctx, routeLabelKey{}, label)
		if s.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
			defer cancel()
		}
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.opts.CORSOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writeJSON(writer, http.StatusNoContent, map[string]any{})
		} else {
			next.ServeHTTP(writer, r)
		}

		elapsed := time.Since(started)
		s.opts.Metrics.ObserveRequest(r.Method, label.template, writer.status, elapsed)
		logrus.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       label.template,
			"status":      writer.status,
			"duration_ms": elapsed.Milliseconds(),
		}).Info("http request")
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-User-Id, X-User-Role, X-Organization-Id, X-Account-Status")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
