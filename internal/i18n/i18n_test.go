package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Bundled(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)

	tr := m.Translator("en")
	assert.Equal(t, "Buy Now", tr.T("purchase.button.idle"))
	assert.Equal(t, "Connect POL wallet", tr.T("purchase.button.buyersBuyingWalletNotConnected"))
	assert.Equal(t, "2/5", tr.Tf("pagination.page", 2, 5))
}

func TestTranslator_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"en.yaml":   {Data: []byte("en:\n  greeting: Hello\n  menu:\n    home: Home\n")},
		"de.yml":    {Data: []byte("de:\n  greeting: Hallo\n")},
		"notes.txt": {Data: []byte("ignored")},
	}

	m, err := LoadFS(fsys, "en")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"en", "de"}, m.Languages())

	testCases := []struct {
		name string
		lang string
		key  string
		want string
	}{
		{name: "own language", lang: "de", key: "greeting", want: "Hallo"},
		{name: "falls back to default", lang: "de", key: "menu.home", want: "Home"},
		{name: "unknown language", lang: "fr", key: "greeting", want: "Hello"},
		{name: "language is case insensitive", lang: " DE ", key: "greeting", want: "Hallo"},
		{name: "missing key returns key", lang: "en", key: "nope.missing", want: "nope.missing"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Translator(tc.lang).T(tc.key))
		})
	}
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"readme.md": {Data: []byte("x")}}, "en")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"de.yaml": {Data: []byte("de:\n  a: b\n")}}, "en")
	assert.ErrorContains(t, err, `default language "en" is missing`)
}

func TestManager_NilTranslator(t *testing.T) {
	var m *Manager
	assert.Equal(t, "some.key", m.Translator("en").T("some.key"))
}

func TestLoadFS_RejectsListValues(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"en.yaml": {Data: []byte("en:\n  tags:\n    - ART\n")}}, "en")
	assert.ErrorContains(t, err, `line 3: "tags" must be text or a nested map`)
}

func TestManager_Missing(t *testing.T) {
	fsys := fstest.MapFS{
		"en.yaml": {Data: []byte("en:\n  a: A\n  b:\n    c: C\n  d: D\n")},
		"de.yaml": {Data: []byte("de:\n  a: A\n")},
	}

	m, err := LoadFS(fsys, "en")
	require.NoError(t, err)

	assert.Equal(t, []string{"b.c", "d"}, m.Missing("de"))
	assert.Empty(t, m.Missing("en"))
}
