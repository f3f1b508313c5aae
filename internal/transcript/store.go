package transcript

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"

	"github.com/hicap-labs/thinkprobe/internal/logging"
)

// DefaultDir is where records live unless the caller chooses otherwise.
const DefaultDir = "chats"

// ErrNotFound reports a record name with no file behind it.
var ErrNotFound = errors.New("transcript: record not found")

const fileStamp = "20060102_150405"

// Store reads and writes records under one directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first
// write, not here.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

// Dir reports the store's root directory.
func (st *Store) Dir() string { return st.dir }

// Save writes the record under a fresh collision-free name and returns the
// path.
func (st *Store) Save(r *Record) (string, error) {
	name := fmt.Sprintf("chat_%s_%s.json", time.Now().Format(fileStamp), ulid.Make().String())
	return st.write(name, r)
}

// SaveFinal writes the end-of-session record, with the ledger condensed
// into a verification summary. The name marks it as the session's last
// snapshot.
func (st *Store) SaveFinal(r *Record) (string, error) {
	r.Summary = Summarize(r.Signatures)
	name := fmt.Sprintf("chat_%s_%s_final.json", time.Now().Format(fileStamp), ulid.Make().String())
	return st.write(name, r)
}

// write lands the record atomically: marshal, write a temp file, rename.
func (st *Store) write(name string, r *Record) (string, error) {
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(st.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// Load reads and validates one record. name may be a bare filename relative
// to the store or a full path.
func (st *Store) Load(name string) (*Record, error) {
	path := name
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(st.dir, name)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	if err := validateRecord(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}

// Entry summarizes one stored record for listings.
type Entry struct {
	Name      string
	Path      string
	SavedAt   string
	Turns     int
	Messages  int
	Resumable bool
	// Digest is the blake3 hash of the file, hex encoded. Two saves of the
	// same history hash alike, so divergent copies stand out.
	Digest string
}

// List returns every record in the store, newest first.
func (st *Store) List() ([]Entry, error) {
	return st.Glob("chat_*.json")
}

// Glob returns records matching pattern (doublestar syntax, relative to the
// store root), newest first. Files that cannot be read or parsed are skipped
// with a log line rather than failing the listing.
func (st *Store) Glob(pattern string) ([]Entry, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(st.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	// Names embed the save stamp, so lexical descent is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	log := logging.With("transcript")
	var out []Entry
	for _, path := range matches {
		if strings.HasSuffix(path, ".tmp") {
			continue
		}
		e := Entry{Name: filepath.Base(path), Path: path}
		r, err := st.Load(path)
		if err != nil {
			log.Debug().Err(err).Str("file", path).Msg("skipping unreadable record")
			continue
		}
		e.SavedAt = r.Timestamp
		e.Turns = r.Turns
		e.Messages = len(r.Messages)
		e.Resumable = r.Resumable
		if d, err := FileDigest(path); err == nil {
			e.Digest = d
		}
		out = append(out, e)
	}
	return out, nil
}

// FileDigest returns the blake3 digest of a stored record, hex encoded.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
