package report

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/mode"
)

func sampleBundle(id string) *Bundle {
	line := 0
	return &Bundle{
		Report: &Report{
			RequestID: id,
			CreatedAt: 1700000000000,
			Manifest: Manifest{
				RequestID: id,
				File:      "invoice.pdf",
				Template:  "invoice",
				Mode:      mode.SinglePass,
				TimingsMs: map[string]int64{"markdown": 3, "pp": 0},
			},
			FieldOrder: []string{"iban"},
			Fields: map[string]FieldDetail{
				"iban": {
					Mode:         mode.SinglePass,
					Confidence:   0.97,
					Coverage:     1,
					Retrieval:    []RetrievalEntry{},
					Context:      "IBAN: IT60X",
					LLMRaw:       `{"value":"IT60X"}`,
					TokenIndices: []int{1},
					BBoxes:       []document.BBox{{0.1, 0.1, 0.2, 0.12}},
					Pages:        []int{1},
				},
			},
		},
		Response: map[string]any{"request_id": id, "status": "done"},
		Markdown: "IBAN: IT60X\n",
		Tokens: document.TokenBatch{Space: document.SpaceNormalized, Tokens: []document.Token{
			{Text: "IBAN:", Page: 1, LineID: &line},
			{Text: "IT60X", Page: 1, LineID: &line},
		}},
		Blocks: []document.PageBlocks{{Page: 1, Width: 600, Height: 800}},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Hour, zap.NewNop())
	id := uuid.NewString()

	require.NoError(t, store.Save(sampleBundle(id)))

	for _, name := range []string{FileReport, FileMarkdown, FileText, FileTokens, FileTables, FileResponse} {
		assert.FileExists(t, filepath.Join(dir, id, name))
	}
	tokens, err := os.ReadFile(filepath.Join(dir, id, FileTokens))
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(tokens, []byte("\n")))

	r, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, r.RequestID)
	assert.Equal(t, mode.SinglePass, r.Manifest.Mode)
	assert.Equal(t, 0.97, r.Fields["iban"].Confidence)
	assert.Contains(t, r.Artifacts, FileTokens)
}

func TestStoreLoadUnknownAndInvalid(t *testing.T) {
	store := NewStore(t.TempDir(), time.Hour, nil)

	_, err := store.Load(uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Load("../../etc")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreWriteZip(t *testing.T) {
	store := NewStore(t.TempDir(), time.Hour, nil)
	id := uuid.NewString()
	require.NoError(t, store.Save(sampleBundle(id)))

	var buf bytes.Buffer
	require.NoError(t, store.WriteZip(id, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{FileText, FileReport, FileMarkdown, FileResponse, FileTables, FileTokens}, names)

	assert.Error(t, store.WriteZip(uuid.NewString(), &buf))
}

func TestStoreSweep(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Hour, nil)
	oldID, freshID := uuid.NewString(), uuid.NewString()
	require.NoError(t, store.Save(sampleBundle(oldID)))
	require.NoError(t, store.Save(sampleBundle(freshID)))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, oldID), past, past))

	assert.Equal(t, 1, store.Sweep(time.Now()))
	assert.NoDirExists(t, filepath.Join(dir, oldID))
	assert.DirExists(t, filepath.Join(dir, freshID))

	assert.Zero(t, NewStore(dir, 0, nil).Sweep(time.Now().Add(24*time.Hour)))
}

func TestRenderMarkdown(t *testing.T) {
	b := sampleBundle(uuid.NewString())
	b.Report.Artifacts = map[string]string{FileText: "/tmp/md.txt"}

	md := RenderMarkdown(b.Report)

	assert.Contains(t, md, "## Field: `iban`")
	assert.Contains(t, md, "**Mode**: `single_pass`")
	assert.Contains(t, md, "- **md.txt**: `/tmp/md.txt`")
	assert.Contains(t, md, "IBAN: IT60X")
	assert.NotContains(t, md, "best-effort fallback")
}
