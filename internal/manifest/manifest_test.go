package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
[package]
name = "example"
version = "0.1.0"

[tool.prequery]
[[tool.prequery.jobs]]
name = "download"
kind = "web-resource"
overwrite = true
index = "my-index.toml"

[tool.prequery.jobs.query]
selector = "<web-resource>"
field = false
inputs = { mode = "draft" }

[[tool.prequery.jobs]]
name = "minimal"
kind = "web-resource"
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Jobs, 2)

	job := m.Jobs[0]
	assert.Equal(t, "download", job.Name)
	assert.Equal(t, "web-resource", job.Kind)
	assert.Equal(t, "<web-resource>", job.Query.Selector)
	assert.True(t, job.Query.Field.IsSet())
	assert.True(t, job.Query.Field.Disabled())
	assert.Equal(t, map[string]string{"mode": "draft"}, job.Query.Inputs)

	minimal := m.Jobs[1]
	assert.Equal(t, "minimal", minimal.Name)
	assert.Empty(t, minimal.Query.Selector)
	assert.False(t, minimal.Query.Field.IsSet())
	assert.Nil(t, minimal.Query.One)
}

func TestDecodeConfig(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	var cfg struct {
		Overwrite bool   `toml:"overwrite"`
		Index     string `toml:"index"`
		Evict     bool   `toml:"evict"`
	}
	require.NoError(t, m.Jobs[0].DecodeConfig(&cfg))
	assert.True(t, cfg.Overwrite)
	assert.Equal(t, "my-index.toml", cfg.Index)
	assert.False(t, cfg.Evict)

	var minimal struct {
		Overwrite bool `toml:"overwrite"`
	}
	require.NoError(t, m.Jobs[1].DecodeConfig(&minimal))
	assert.False(t, minimal.Overwrite)
}

func TestParseFieldName(t *testing.T) {
	m, err := Parse([]byte(`
[tool.prequery]
[[tool.prequery.jobs]]
name = "j"
kind = "web-resource"
query = { field = "value", one = true }
`))
	require.NoError(t, err)

	job := m.Jobs[0]
	require.True(t, job.Query.Field.IsSet())
	assert.False(t, job.Query.Field.Disabled())
	assert.Equal(t, "value", job.Query.Field.Name())
	require.NotNil(t, job.Query.One)
	assert.True(t, *job.Query.One)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not toml", `tool = [`},
		{"no tool section", `[package]` + "\n" + `name = "x"`},
		{"no prequery section", `[tool.other]` + "\n" + `x = 1`},
		{"no jobs", `[tool.prequery]` + "\n" + `jobs = []`},
		{"job without name", "[[tool.prequery.jobs]]\nkind = \"web-resource\""},
		{"job without kind", "[[tool.prequery.jobs]]\nname = \"j\""},
		{"field true", "[[tool.prequery.jobs]]\nname = \"j\"\nkind = \"web-resource\"\nquery = { field = true }"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}
