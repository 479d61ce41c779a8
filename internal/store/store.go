package store

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
)

// Store writes and reads payload files under one directory per category.
// Locations handed out by Write are relative paths, opaque to callers,
// resolvable only by this store.
type Store struct {
	baseDir  string
	compress bool
}

// New creates a payload store rooted at baseDir, creating the per-category
// directories if needed.
func New(baseDir string, compress bool) (*Store, error) {
	for _, c := range entry.Categories {
		dir := filepath.Join(baseDir, string(c))
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.NewIOFailure("payload directory create", err)
		}
	}
	return &Store{baseDir: baseDir, compress: compress}, nil
}

// BaseDir returns the directory the store is rooted at.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// NewID generates a new ULID.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// QueryHash returns a short stable hash of a free-text query, used to group
// entries originating from the same query without storing the query itself
// in the index.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])[:12]
}

// Write serializes the payload, optionally compresses it, and writes it to a
// category-scoped file. The returned location resolves back to the payload;
// size is the on-disk byte count. Nothing is written on serialization failure.
// The bytes go to a temp file that is synced and renamed into place, so the
// location is handed out only after a durable write and the final path never
// holds partial content.
func (s *Store) Write(id string, ts time.Time, sessionID, queryHash string, p *entry.Payload) (string, int64, error) {
	if err := p.Validate(); err != nil {
		return "", 0, errors.NewInvalidRequest(err.Error())
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", 0, errors.NewInternal(err)
	}

	if s.compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return "", 0, errors.NewInternal(err)
		}
		if err := gz.Close(); err != nil {
			return "", 0, errors.NewInternal(err)
		}
		data = buf.Bytes()
	}

	location := s.filename(id, ts, sessionID, queryHash, p)
	path := filepath.Join(s.baseDir, location)

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return "", 0, errors.NewIOFailure("payload create", err)
	}

	success := false
	defer func() {
		if f != nil {
			f.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return "", 0, errors.NewIOFailure("payload write", err)
	}
	if err := f.Sync(); err != nil {
		return "", 0, errors.NewIOFailure("payload sync", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, errors.NewIOFailure("payload close", err)
	}
	f = nil

	if err := os.Rename(tempPath, path); err != nil {
		return "", 0, errors.NewIOFailure("payload finalize", err)
	}

	success = true
	return location, int64(len(data)), nil
}

// Read loads and decodes the payload at location. A missing file is
// NOT_FOUND; a file that fails to decompress or parse is CORRUPT_PAYLOAD.
// Read-path callers treat both as "skip this entry, continue".
func (s *Store) Read(location string) (*entry.Payload, error) {
	path := filepath.Join(s.baseDir, location)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(location)
		}
		return nil, errors.NewIOFailure("payload open", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(location, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.NewCorruptPayload(location, err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewCorruptPayload(location, err)
	}

	var p entry.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewCorruptPayload(location, err)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.NewCorruptPayload(location, err)
	}

	return &p, nil
}

// Delete removes the payload at location. A file that is already gone is not
// an error; the reaper tolerates missing files.
func (s *Store) Delete(location string) error {
	path := filepath.Join(s.baseDir, location)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOFailure("payload delete", err)
	}
	return nil
}

// Exists reports whether a payload file is present at location.
func (s *Store) Exists(location string) bool {
	_, err := os.Stat(filepath.Join(s.baseDir, location))
	return err == nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// filename builds the category-scoped payload file name: a timestamp-derived
// prefix plus a short collision-resistant suffix from the ULID.
func (s *Store) filename(id string, ts time.Time, sessionID, queryHash string, p *entry.Payload) string {
	ext := ".json"
	if s.compress {
		ext = ".json.gz"
	}

	short := id
	if len(short) > 8 {
		short = short[:8]
	}

	var name string
	switch p.Category {
	case entry.CategoryThinking:
		name = fmt.Sprintf("%s_%s_%s", ts.Format("2006-01-02T15-04-05"), queryHash, short)
	case entry.CategoryResearch:
		session := sessionID
		if len(session) > 8 {
			session = session[:8]
		}
		name = fmt.Sprintf("research_%s_%s_%s", ts.Format("2006-01-02"), session, short)
	case entry.CategoryAgent:
		agent := unsafeNameChars.ReplaceAllString(strings.ToLower(p.Agent.AgentName), "-")
		name = fmt.Sprintf("agent_%s_%s_%s", agent, ts.Format("2006-01-02"), short)
	}

	return filepath.Join(string(p.Category), name+ext)
}
