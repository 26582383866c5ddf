package report

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/document"
)

// ErrNotFound is returned for unknown or malformed request IDs.
var ErrNotFound = eris.New("report not found")

// Artifact file names inside a request directory.
const (
	FileReport   = "report.json"
	FileMarkdown = "report.md"
	FileText     = "md.txt"
	FileTokens   = "tokens.jsonl"
	FileTables   = "tables.json"
	FileResponse = "response.json"
)

// Bundle is everything persisted for one request.
type Bundle struct {
	Report   *Report
	Response any
	Markdown string
	Tokens   document.TokenBatch
	Blocks   []document.PageBlocks
}

// Store keeps report bundles under one directory, one subdirectory per
// request ID.
type Store struct {
	dir string
	ttl time.Duration
	log *zap.Logger
}

func NewStore(dir string, ttl time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, ttl: ttl, log: log}
}

// Dir is the root directory of the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(requestID string) (string, error) {
	if err := uuid.Validate(requestID); err != nil {
		return "", eris.Wrapf(ErrNotFound, "report: invalid request id %q", requestID)
	}
	return filepath.Join(s.dir, requestID), nil
}

// Save writes b into the request directory and fills in b.Report.Artifacts.
func (s *Store) Save(b *Bundle) error {
	base, err := s.path(b.Report.RequestID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return eris.Wrap(err, "report: create dir")
	}
	if b.Report.Artifacts == nil {
		b.Report.Artifacts = map[string]string{}
	}
	artifact := func(name string) string {
		p := filepath.Join(base, name)
		b.Report.Artifacts[name] = p
		return p
	}

	if err := os.WriteFile(artifact(FileText), []byte(b.Markdown), 0o644); err != nil {
		return eris.Wrap(err, "report: write markdown")
	}
	if err := writeTokens(artifact(FileTokens), b.Tokens.Tokens); err != nil {
		return err
	}
	if len(b.Blocks) > 0 {
		if err := writeJSON(artifact(FileTables), b.Blocks); err != nil {
			return err
		}
	}
	if b.Response != nil {
		if err := writeJSON(artifact(FileResponse), b.Response); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(base, FileReport), b.Report); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(base, FileMarkdown), []byte(RenderMarkdown(b.Report)), 0o644); err != nil {
		return eris.Wrap(err, "report: write report.md")
	}
	s.log.Debug("report saved", zap.String("request_id", b.Report.RequestID), zap.String("dir", base))
	return nil
}

// Load reads report.json for requestID.
func (s *Store) Load(requestID string) (*Report, error) {
	base, err := s.path(requestID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(base, FileReport))
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "report: %s", requestID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "report: read")
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "report: decode")
	}
	return &r, nil
}

// WriteZip streams every file of the request directory into w as a zip
// archive, paths relative to the directory.
func (s *Store) WriteZip(requestID string, w io.Writer) error {
	base, err := s.path(requestID)
	if err != nil {
		return err
	}
	if st, err := os.Stat(base); err != nil || !st.IsDir() {
		return eris.Wrapf(ErrNotFound, "report: %s", requestID)
	}

	var files []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "report: walk")
	}
	sort.Strings(files)

	zw := zip.NewWriter(w)
	for _, p := range files {
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return eris.Wrap(err, "report: relative path")
		}
		if err := addZipFile(zw, p, filepath.ToSlash(rel)); err != nil {
			return err
		}
	}
	return eris.Wrap(zw.Close(), "report: close zip")
}

func addZipFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "report: open artifact")
	}
	defer f.Close()
	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return eris.Wrap(err, "report: zip header")
	}
	_, err = io.Copy(dst, f)
	return eris.Wrap(err, "report: zip copy")
}

// Sweep deletes request directories last modified before now minus the
// TTL and returns how many were removed. A non-positive TTL keeps
// everything.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || uuid.Validate(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warn("report sweep failed", zap.String("request_id", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("expired reports removed", zap.Int("count", removed))
	}
	return removed
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "report: encode %s", filepath.Base(path))
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "report: write %s", filepath.Base(path))
}

func writeTokens(path string, tokens []document.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create tokens")
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, t := range tokens {
		if err := enc.Encode(t); err != nil {
			return eris.Wrap(err, "report: encode token")
		}
	}
	return eris.Wrap(w.Flush(), "report: flush tokens")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
