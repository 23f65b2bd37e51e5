package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"firnline/api/internal/auth"
	"firnline/api/internal/classify"
	"firnline/api/internal/config"
	"firnline/api/internal/document"
	"firnline/api/internal/export"
	"firnline/api/internal/radar"
	"firnline/api/internal/search"
	"firnline/api/internal/session"
	"firnline/api/internal/store"
)

type Session struct {
	Username string
	IsAdmin  bool
}

type dataStore interface {
	EnsureUser(ctx context.Context, username, passwordHash string, isAdmin bool) (store.User, error)
	GetUserByName(ctx context.Context, username string) (store.User, error)
	InsertSubmission(ctx context.Context, radarKey, username string, dateModified time.Time, doc []byte) (store.Submission, error)
	LatestSubmission(ctx context.Context, username, radarKey string) (store.Submission, error)
	UserSubmissionCounts(ctx context.Context, username string) (map[string]int, error)
	SubmitterCounts(ctx context.Context) (map[string]int, error)
	SubmitterCount(ctx context.Context, radarKey string) (int, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	Save(ctx context.Context, tokenHash string, data session.Data, ttl time.Duration) error
	Lookup(ctx context.Context, tokenHash string) (session.Data, error)
	Delete(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type archiver interface {
	Record(username, radarKey, filename string, payload []byte) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	catalog  *radar.Catalog
	registry *classify.Registry
	searcher *search.Service
	archive  archiver
	exporter *export.Service

	now func() time.Time
}

func NewService(cfg config.Config, data dataStore, sessions sessionStore, catalog *radar.Catalog,
	searcher *search.Service, archive archiver, exporter *export.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    data,
		sessions: sessions,
		catalog:  catalog,
		registry: classify.Default(),
		searcher: searcher,
		archive:  archive,
		exporter: exporter,
		now:      time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	return nil
}

// ProvisionUsers derives each listed participant's password from the
// deployment key and upserts their account. Runs at every startup.
func (s *Service) ProvisionUsers(ctx context.Context) (int, error) {
	f, err := os.Open(s.cfg.UsernamesFile)
	if err != nil {
		return 0, fmt.Errorf("open usernames file: %w", err)
	}
	defer f.Close()

	admins := map[string]bool{}
	for _, name := range s.cfg.AdminUsers {
		admins[name] = true
	}

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		username := strings.TrimSpace(scanner.Text())
		if username == "" || strings.HasPrefix(username, "#") {
			continue
		}
		password := auth.GeneratePassword(s.cfg.PrivateKey, username)
		hash, err := auth.HashPassword(password)
		if err != nil {
			return count, err
		}
		if _, err := s.store.EnsureUser(ctx, username, hash, admins[username]); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read usernames file: %w", err)
	}
	return count, nil
}

// Login checks credentials and opens a session, returning the bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, Session, error) {
	user, err := s.store.GetUserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", Session{}, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return "", Session{}, err
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		return "", Session{}, err
	}
	data := session.Data{Username: user.Username, IsAdmin: user.IsAdmin, CreatedAt: s.now()}
	if err := s.sessions.Save(ctx, auth.HashToken(token), data, s.cfg.SessionTTL); err != nil {
		return "", Session{}, err
	}
	return token, Session{Username: user.Username, IsAdmin: user.IsAdmin}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, auth.HashToken(token))
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	data, err := s.sessions.Lookup(ctx, auth.HashToken(token))
	if err != nil {
		return Session{}, err
	}
	return Session{Username: data.Username, IsAdmin: data.IsAdmin}, nil
}

// RadargramMeta returns the raw metadata document for one radargram,
// extended with its submission statistics.
func (s *Service) RadargramMeta(ctx context.Context, radarKey string) (map[string]any, error) {
	rg := s.catalog.Get(radarKey)
	if rg == nil {
		return nil, domainError(http.StatusBadRequest, "UNKNOWN_RADARGRAM", "Key not valid", nil)
	}

	n, err := s.store.SubmitterCount(ctx, radarKey)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(rg.Raw)+5)
	for k, v := range rg.Raw {
		out[k] = v
	}
	s.addStats(out, radarKey, n)
	return out, nil
}

// AllRadargrams returns every radargram's metadata keyed by radar key, with
// the bulky tiles and track fields stripped. username may be empty; it only
// affects the per-user counts.
func (s *Service) AllRadargrams(ctx context.Context, username string) (map[string]map[string]any, error) {
	submitters, err := s.store.SubmitterCounts(ctx)
	if err != nil {
		return nil, err
	}
	var userCounts map[string]int
	if username != "" {
		userCounts, err = s.store.UserSubmissionCounts(ctx, username)
		if err != nil {
			return nil, err
		}
	}

	out := map[string]map[string]any{}
	for _, key := range s.catalog.Keys() {
		rg := s.catalog.Get(key)
		entry := make(map[string]any, len(rg.Raw))
		for k, v := range rg.Raw {
			if k == "tiles" || k == "track" {
				continue
			}
			entry[k] = v
		}
		s.addStats(entry, key, submitters[key])
		if userCounts != nil {
			entry["n_done_by_user"] = userCounts[key]
		}
		out[key] = entry
	}
	return out, nil
}

// LocationInfo merges the survey bounds of all radargrams on one glacier.
func (s *Service) LocationInfo(glacier string) (map[string]any, error) {
	keys := s.catalog.ByGlacier()[glacier]
	if len(keys) == 0 {
		return nil, domainError(http.StatusNotFound, "UNKNOWN_GLACIER", "No radargrams for that glacier", nil)
	}

	bounds := radar.Bounds{MinLat: 999, MaxLat: 0, MinLon: 999, MaxLon: 0}
	for _, key := range keys {
		b := s.catalog.Get(key).Meta.Bounds
		if b == nil {
			continue
		}
		if b.MinLat < bounds.MinLat {
			bounds.MinLat = b.MinLat
		}
		if b.MaxLat > bounds.MaxLat {
			bounds.MaxLat = b.MaxLat
		}
		if b.MinLon < bounds.MinLon {
			bounds.MinLon = b.MinLon
		}
		if b.MaxLon > bounds.MaxLon {
			bounds.MaxLon = b.MaxLon
		}
	}

	return map[string]any{
		"bounds":     bounds,
		"radar_keys": keys,
		"nice_name":  radar.NiceName(glacier),
	}, nil
}

// UserSubmissions reports the session user's progress per radargram and per
// glacier.
func (s *Service) UserSubmissions(ctx context.Context, username string) (map[string]any, error) {
	counts, err := s.store.UserSubmissionCounts(ctx, username)
	if err != nil {
		return nil, err
	}

	perGlacier := map[string]int{}
	for glacier := range s.catalog.ByGlacier() {
		perGlacier[glacier] = 0
	}
	for key := range counts {
		perGlacier[radar.GlacierOf(key)]++
	}

	return map[string]any{
		"per_radar_key": counts,
		"per_glacier":   perGlacier,
	}, nil
}

// Recommended returns the curated [glacier, radar_key] pairs for new users.
func (s *Service) Recommended() [][2]string {
	out := make([][2]string, 0, len(s.cfg.Recommended))
	for _, key := range s.cfg.Recommended {
		out = append(out, [2]string{radar.GlacierOf(key), key})
	}
	return out
}

func (s *Service) Search(q search.Query) search.Response {
	return s.searcher.Search(q)
}

// LatestSubmission returns the session user's latest document for a
// radargram as raw JSON, or nil if they never submitted one.
func (s *Service) LatestSubmission(ctx context.Context, sess Session, radarKey string) (json.RawMessage, error) {
	sub, err := s.store.LatestSubmission(ctx, sess.Username, radarKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(sub.Document), nil
}

// SubmitDigitized validates and stores a submitted document. The identity
// fields must name a known radargram and match its canonical dimensions; the
// user is stamped server-side.
func (s *Service) SubmitDigitized(ctx context.Context, sess Session, body []byte) (string, error) {
	var doc document.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", domainError(http.StatusBadRequest, "INVALID_DOCUMENT", "Body is not a valid document", nil)
	}
	if err := document.ValidateShape(&doc); err != nil {
		return "", domainError(http.StatusBadRequest, "INVALID_DOCUMENT", err.Error(), nil)
	}

	rg := s.catalog.Get(doc.RadarKey)
	if rg == nil {
		return "", domainError(http.StatusBadRequest, "UNKNOWN_RADARGRAM", "Key not valid", nil)
	}
	if doc.Width != rg.Meta.Width || doc.Height != rg.Meta.Height {
		return "", domainError(http.StatusBadRequest, "DIMENSION_MISMATCH",
			fmt.Sprintf("document dimensions %dx%d do not match radargram %dx%d",
				doc.Width, doc.Height, rg.Meta.Width, rg.Meta.Height), nil)
	}

	doc.User = sess.Username
	payload, err := json.Marshal(&doc)
	if err != nil {
		return "", err
	}

	dateModified, err := time.Parse(time.RFC3339, doc.DateModified)
	if err != nil {
		return "", domainError(http.StatusBadRequest, "INVALID_DOCUMENT", "date_modified must be an RFC 3339 timestamp", nil)
	}

	if _, err := s.store.InsertSubmission(ctx, doc.RadarKey, sess.Username, dateModified, payload); err != nil {
		return "", err
	}

	filename := export.SubmissionFilename(doc.RadarKey, dateModified)
	if err := s.archive.Record(sess.Username, doc.RadarKey, filename, payload); err != nil {
		log.Printf("archive: record submission for %s by %s: %v", doc.RadarKey, sess.Username, err)
	}

	s.reindexSearch(ctx)
	return "Data submitted successfully", nil
}

func (s *Service) SubmissionsZip(ctx context.Context, w io.Writer) error {
	return s.exporter.SubmissionsZip(ctx, w)
}

func (s *Service) InterpretationsZip(ctx context.Context, w io.Writer) error {
	return s.exporter.InterpretationsZip(ctx, w)
}

// SeedSearchIndex pushes the initial radargram records to the search index.
// Called once at startup.
func (s *Service) SeedSearchIndex(ctx context.Context) {
	s.reindexSearch(ctx)
}

// ForceReload rescans the radargram catalog and refreshes the search index.
func (s *Service) ForceReload(ctx context.Context) error {
	if err := s.catalog.Reload(); err != nil {
		return err
	}
	s.reindexSearch(ctx)
	return nil
}

// SearchRecords builds the current per-radargram search records.
func (s *Service) SearchRecords(ctx context.Context) []search.Record {
	submitters, err := s.store.SubmitterCounts(ctx)
	if err != nil {
		log.Printf("search: load submitter counts: %v", err)
		submitters = map[string]int{}
	}

	keys := s.catalog.Keys()
	records := make([]search.Record, 0, len(keys))
	for _, key := range keys {
		rg := s.catalog.Get(key)
		glacier := radar.GlacierOf(key)
		n := submitters[key]
		records = append(records, search.Record{
			RadarKey:    key,
			Glacier:     glacier,
			NiceName:    radar.NiceName(glacier),
			LengthKm:    rg.Meta.LengthKmRounded,
			NSubmitters: n,
			Finished:    n >= radar.RequiredSubmissions(key),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RadarKey < records[j].RadarKey })
	return records
}

func (s *Service) reindexSearch(ctx context.Context) {
	s.searcher.Reindex(s.SearchRecords(ctx))
}

func (s *Service) addStats(entry map[string]any, radarKey string, submitters int) {
	required := radar.RequiredSubmissions(radarKey)
	glacier := radar.GlacierOf(radarKey)
	entry["n_total_submissions"] = submitters
	entry["n_required_submissions"] = required
	entry["is_finished"] = submitters >= required
	entry["glacier"] = glacier
	entry["nice_name"] = radar.NiceName(glacier)
}
