package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOwner struct{ root string }

func (o fakeOwner) Root() string { return o.root }
func (o fakeOwner) Name() string { return "proj" }

func TestMaterialize_FiltersMalformed(t *testing.T) {
	owner := fakeOwner{root: "/proj"}
	raw := []any{
		map[string]any{"name": "first"},
		"not-an-object",
		map[string]any{"name": "second"},
	}

	records := Materialize(raw, owner)

	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, "second", records[1].GetString("name"))
	assert.Equal(t, "/proj", records[1].Root())
}

func TestMaterialize_Normalizes(t *testing.T) {
	owner := fakeOwner{root: "/proj"}

	tests := []struct {
		name string
		raw  any
		want int
	}{
		{"absent", nil, 0},
		{"single object", map[string]any{"name": "only"}, 1},
		{"list", []any{map[string]any{}, map[string]any{}}, 2},
		{"scalar", 42, 0},
		{"list of scalars", []any{1, "x", true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Materialize(tt.raw, owner), tt.want)
		})
	}
}

func TestMaterialize_IndexStability(t *testing.T) {
	owner := fakeOwner{root: "/proj"}
	raw := []any{
		map[string]any{"name": "a"},
		nil,
		map[string]any{"name": "b"},
		map[string]any{"name": "c"},
	}

	first := Materialize(raw, owner)
	second := Materialize(raw, owner)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Index, second[i].Index)
		assert.Equal(t, first[i].Payload, second[i].Payload)
	}

	first[0].Payload["name"] = "mutated"
	assert.Equal(t, "a", second[0].GetString("name"), "records share payloads")
	assert.Equal(t, "a", raw[0].(map[string]any)["name"], "record mutation reached the settings")
}

func TestPackage_Accessors(t *testing.T) {
	owner := fakeOwner{root: "/proj"}
	pkgs := Packages([]any{
		map[string]any{
			"name":           "site",
			"files":          []any{"public/**"},
			"exclude":        "*.map",
			"targets":        []any{"staging", "prod"},
			"deployOnChange": []any{"staging"},
			"deleteOnRemove": true,
		},
		map[string]any{},
	}, owner)

	require.Len(t, pkgs, 2)

	site := pkgs[0]
	assert.Equal(t, "site", site.Name())
	assert.Equal(t, []string{"public/**"}, site.Files())
	assert.Equal(t, []string{"*.map"}, site.Exclude())
	assert.Equal(t, []string{"staging", "prod"}, site.TargetNames())

	all, names := site.DeployOnChange()
	assert.False(t, all)
	assert.Equal(t, []string{"staging"}, names)

	all, _ = site.DeleteOnRemove()
	assert.True(t, all)

	unnamed := pkgs[1]
	assert.Equal(t, "Package #2", unnamed.Name())
	assert.Equal(t, []string{DefaultFiles}, unnamed.Files())
	all, names = unnamed.DeployOnChange()
	assert.False(t, all)
	assert.Empty(t, names)
}

func TestTarget_Accessors(t *testing.T) {
	targets := Targets(map[string]any{
		"type":   "script",
		"script": "deploy.lua",
	}, fakeOwner{root: "/proj"})

	require.Len(t, targets, 1)
	tgt := targets[0]
	assert.Equal(t, "Target #1", tgt.Name())
	assert.Equal(t, "script", tgt.Type())

	script, ok := tgt.Option("script")
	assert.True(t, ok)
	assert.Equal(t, "deploy.lua", script)
}
