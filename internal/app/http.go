package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"firnline/api/internal/auth"
	"firnline/api/internal/export"
	"firnline/api/internal/search"
	"firnline/api/internal/session"
	"firnline/api/internal/tiles"
)

type HTTPServer struct {
	service    *Service
	tiles      tiles.Store
	corsOrigin string
}

func NewHTTPServer(service *Service, tileStore tiles.Store, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, tiles: tileStore, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/healthz" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.service.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/login" {
		s.handleLogin(w, r)
		return
	}

	if r.URL.Path == "/logout" && (r.Method == http.MethodGet || r.Method == http.MethodPost) {
		if token := bearerToken(r); token != "" {
			_ = s.service.Logout(r.Context(), token)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)

	if r.Method == http.MethodGet {
		switch {
		case len(parts) == 2 && parts[0] == "radargram_meta" && strings.HasSuffix(parts[1], ".json"):
			s.handleRadargramMeta(w, r, strings.TrimSuffix(parts[1], ".json"))
			return
		case len(parts) == 2 && parts[0] == "radargram_latest_submission" && strings.HasSuffix(parts[1], ".json"):
			s.handleLatestSubmission(w, r, strings.TrimSuffix(parts[1], ".json"))
			return
		case len(parts) == 2 && parts[0] == "location_info" && strings.HasSuffix(parts[1], ".json"):
			s.handleLocationInfo(w, r, strings.TrimSuffix(parts[1], ".json"))
			return
		case r.URL.Path == "/all_radargrams.json":
			s.handleAllRadargrams(w, r)
			return
		case r.URL.Path == "/user_submissions.json":
			s.handleUserSubmissions(w, r)
			return
		case r.URL.Path == "/recommended.json":
			writeJSON(w, http.StatusOK, s.service.Recommended())
			return
		case r.URL.Path == "/search.json":
			s.handleSearch(w, r)
			return
		case len(parts) >= 3 && parts[0] == "static" && parts[1] == "radargrams":
			s.handleTile(w, r, strings.Join(parts[2:], "/"))
			return
		case r.URL.Path == "/download_submissions":
			s.handleDownloadSubmissions(w, r)
			return
		case r.URL.Path == "/download_interpretations":
			s.handleDownloadInterpretations(w, r)
			return
		}
	}

	if r.Method == http.MethodPost {
		switch r.URL.Path {
		case "/submit-digitized":
			s.handleSubmitDigitized(w, r)
			return
		case "/force-reload":
			s.handleForceReload(w, r)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	token, sess, err := s.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"username": sess.Username,
		"is_admin": sess.IsAdmin,
	})
}

func (s *HTTPServer) handleRadargramMeta(w http.ResponseWriter, r *http.Request, radarKey string) {
	meta, err := s.service.RadargramMeta(r.Context(), radarKey)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *HTTPServer) handleLatestSubmission(w http.ResponseWriter, r *http.Request, radarKey string) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	raw, err := s.service.LatestSubmission(r.Context(), sess, radarKey)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if raw == nil {
		// No prior submission is signalled with an empty object.
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *HTTPServer) handleSubmitDigitized(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read body", nil)
		return
	}
	message, err := s.service.SubmitDigitized(r.Context(), sess, body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message})
}

func (s *HTTPServer) handleAllRadargrams(w http.ResponseWriter, r *http.Request) {
	username := ""
	if sess, err := s.sessionFromRequest(r); err == nil {
		username = sess.Username
	}
	out, err := s.service.AllRadargrams(r.Context(), username)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleLocationInfo(w http.ResponseWriter, r *http.Request, glacier string) {
	out, err := s.service.LocationInfo(glacier)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleUserSubmissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	out, err := s.service.UserSubmissions(r.Context(), sess.Username)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := search.Query{
		Text:   r.URL.Query().Get("q"),
		Limit:  intParam(r, "limit"),
		Offset: intParam(r, "offset"),
	}
	writeJSON(w, http.StatusOK, s.service.Search(query))
}

func (s *HTTPServer) handleTile(w http.ResponseWriter, r *http.Request, objectPath string) {
	rc, contentType, err := s.tiles.Fetch(r.Context(), objectPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Tile not found", nil)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (s *HTTPServer) handleDownloadSubmissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	name := export.DownloadName("submissions", time.Now())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := s.service.SubmissionsZip(r.Context(), w); err != nil {
		log.Printf("export: submissions zip: %v", err)
	}
}

func (s *HTTPServer) handleDownloadInterpretations(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	name := export.DownloadName("interpretations", time.Now())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := s.service.InterpretationsZip(r.Context(), w); err != nil {
		log.Printf("export: interpretations zip: %v", err)
	}
}

func (s *HTTPServer) handleForceReload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	if err := s.service.ForceReload(r.Context()); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) sessionFromRequest(r *http.Request) (Session, error) {
	token := bearerToken(r)
	if token == "" {
		return Session{}, session.ErrNotFound
	}
	return s.service.SessionFromToken(r.Context(), token)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Must be logged in", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return Session{}, false
	}
	if !sess.IsAdmin {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
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
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	inner := map[string]any{
		"code":    code,
		"message": message,
	}
	if details != nil {
		inner["details"] = details
	}
	writeJSON(w, status, map[string]any{"error": inner})
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func intParam(r *http.Request, name string) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Must be logged in", nil
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
