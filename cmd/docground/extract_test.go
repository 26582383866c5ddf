package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docground/internal/document"
)

func TestLoadTemplate_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"invoice","fields":[" total ","iban"]}`), 0o644))

	tpl, err := loadTemplate(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "invoice", tpl.Name)
	assert.Equal(t, []string{"total", "iban"}, tpl.Fields)
}

func TestLoadTemplate_FromFlags(t *testing.T) {
	tpl, err := loadTemplate("", []string{"total"})
	require.NoError(t, err)
	assert.Equal(t, "default", tpl.Name)

	_, err = loadTemplate("", nil)
	assert.Error(t, err)

	_, err = loadTemplate("", []string{"a", "a"})
	assert.ErrorIs(t, err, document.ErrInvalidTemplate)
}

func TestLoadTemplate_MissingFile(t *testing.T) {
	_, err := loadTemplate(filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["extract"])
}
