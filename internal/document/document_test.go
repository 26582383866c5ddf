package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWords(t *testing.T) {
	pages := []PageWords{
		{Page: 1, Width: 200, Height: 100, Words: []Word{
			{Text: "IBAN", BBox: BBox{20, 10, 60, 20}, LineID: 0},
		}},
		{Page: 2, Width: 0, Height: 100, Words: []Word{{Text: "skipped"}}},
	}

	batch := NormalizeWords(pages)

	assert.Equal(t, SpaceNormalized, batch.Space)
	require.Len(t, batch.Tokens, 1)
	tok := batch.Tokens[0]
	assert.Equal(t, "IBAN", tok.Text)
	assert.Equal(t, 1, tok.Page)
	assert.InDeltaSlice(t, []float64{0.1, 0.1, 0.3, 0.2}, tok.BBox[:], 1e-9)
	require.NotNil(t, tok.LineID)
	assert.Equal(t, 0, *tok.LineID)
}

func TestTemplateValidate(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		wantErr bool
	}{
		{"ok", []string{"iban", "total"}, false},
		{"empty", nil, true},
		{"blank", []string{"iban", "  "}, true},
		{"duplicate", []string{"iban", "iban "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Template{Fields: tt.fields}.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTemplate))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTemplateNormalizeAndAnchors(t *testing.T) {
	tpl := Template{Fields: []string{" IBAN ", "Total"}}
	tpl.Normalize()

	assert.Equal(t, "default", tpl.Name)
	assert.Equal(t, []string{"IBAN", "Total"}, tpl.Fields)
	assert.Equal(t, []string{"iban", "total"}, tpl.Anchors())
}

func TestParseTemplate(t *testing.T) {
	tpl, err := ParseTemplate([]byte(`{"fields": [" iban ", "total"], "llm_text": "Italian invoice"}`))
	require.NoError(t, err)
	assert.Equal(t, "default", tpl.Name)
	assert.Equal(t, []string{"iban", "total"}, tpl.Fields)
	assert.Equal(t, "Italian invoice", tpl.Guidance)

	_, err = ParseTemplate([]byte(`{"fields": "iban"}`))
	assert.True(t, errors.Is(err, ErrInvalidTemplate))

	_, err = ParseTemplate([]byte(`{"name": "x", "fields": []}`))
	assert.True(t, errors.Is(err, ErrInvalidTemplate))
}
