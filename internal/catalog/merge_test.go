package catalog

import (
	"testing"
	"time"

	"poe2openai/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1760000000, 0)

func boolPtr(v bool) *bool    { return &v }
func int64Ptr(v int64) *int64 { return &v }

func ids(models []core.ModelInfo) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.ID
	}
	return out
}

func upstreamModels(names ...string) []core.ModelInfo {
	out := make([]core.ModelInfo, len(names))
	for i, name := range names {
		out[i] = core.ModelInfo{ID: name, Object: "model", Created: int64(i + 1), OwnedBy: "upstream"}
	}
	return out
}

func TestMerge_DisabledModelDropped(t *testing.T) {
	got := Merge(upstreamModels("a", "b"), map[string]core.ModelOverride{
		"b": {Enable: boolPtr(false)},
	}, nil, fixedNow)

	assert.Equal(t, []string{"a"}, ids(got))
}

func TestMerge_RenameLowercasesTarget(t *testing.T) {
	got := Merge(upstreamModels("a"), map[string]core.ModelOverride{
		"a": {Enable: boolPtr(true), Mapping: "A2"},
	}, nil, fixedNow)

	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, int64(1), got[0].Created, "other fields are kept")
	assert.Equal(t, "upstream", got[0].OwnedBy)
}

func TestMerge_OverrideWithoutMappingPassesThrough(t *testing.T) {
	got := Merge(upstreamModels("a", "b"), map[string]core.ModelOverride{
		"a": {},
	}, nil, fixedNow)

	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestMerge_UpstreamIDsLowercased(t *testing.T) {
	got := Merge(upstreamModels("GPT-4o"), map[string]core.ModelOverride{
		"gpt-4o": {Mapping: "gpt4"},
	}, nil, fixedNow)

	assert.Equal(t, []string{"gpt4"}, ids(got))
}

func TestMerge_CustomSkipsDuplicates(t *testing.T) {
	got := Merge(upstreamModels("x"), nil, []core.CustomModel{{ID: "x"}, {ID: "y"}}, fixedNow)

	assert.Equal(t, []string{"x", "y"}, ids(got))
	assert.Equal(t, "upstream", got[0].OwnedBy, "the upstream record wins")
}

func TestMerge_CustomDedupIsCaseInsensitive(t *testing.T) {
	got := Merge(upstreamModels("x"), nil, []core.CustomModel{{ID: "X"}, {ID: "Y"}, {ID: "y"}}, fixedNow)

	assert.Equal(t, []string{"x", "y"}, ids(got))
}

func TestMerge_CustomSkipsRenamedID(t *testing.T) {
	got := Merge(upstreamModels("a"), map[string]core.ModelOverride{
		"a": {Mapping: "b"},
	}, []core.CustomModel{{ID: "b", OwnedBy: "me"}}, fixedNow)

	require.Len(t, got, 1)
	assert.Equal(t, "upstream", got[0].OwnedBy)
}

func TestMerge_CustomDisabledByOverride(t *testing.T) {
	got := Merge(nil, map[string]core.ModelOverride{
		"hidden": {Enable: boolPtr(false)},
	}, []core.CustomModel{{ID: "Hidden"}, {ID: "shown"}}, fixedNow)

	assert.Equal(t, []string{"shown"}, ids(got))
}

func TestMerge_CustomDefaults(t *testing.T) {
	got := Merge(nil, nil, []core.CustomModel{
		{ID: "plain"},
		{ID: "full", Created: int64Ptr(42), OwnedBy: "me"},
	}, fixedNow)

	require.Len(t, got, 2)
	assert.Equal(t, core.ModelInfo{ID: "plain", Object: "model", Created: fixedNow.Unix(), OwnedBy: "poe"}, got[0])
	assert.Equal(t, core.ModelInfo{ID: "full", Object: "model", Created: 42, OwnedBy: "me"}, got[1])
}

func TestMerge_OrderPreserved(t *testing.T) {
	got := Merge(upstreamModels("c", "a", "b"), map[string]core.ModelOverride{
		"a": {Mapping: "z"},
	}, []core.CustomModel{{ID: "m"}, {ID: "d"}}, fixedNow)

	assert.Equal(t, []string{"c", "z", "b", "m", "d"}, ids(got))
}

func TestMerge_RenameCollisionFirstWins(t *testing.T) {
	got := Merge(upstreamModels("a", "b"), map[string]core.ModelOverride{
		"a": {Mapping: "b"},
	}, nil, fixedNow)

	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, int64(1), got[0].Created, "the renamed record was emitted first")

	got = Merge(upstreamModels("b", "a"), map[string]core.ModelOverride{
		"a": {Mapping: "B"},
	}, nil, fixedNow)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Created, "the original b was emitted first")
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	in := upstreamModels("A")
	Merge(in, map[string]core.ModelOverride{"a": {Mapping: "z"}}, nil, fixedNow)

	assert.Equal(t, "A", in[0].ID)
}

func TestMerge_EmptyInputs(t *testing.T) {
	got := Merge(nil, nil, nil, fixedNow)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeConfig(t *testing.T) {
	cfg := &core.ModelsConfig{
		Enable:       boolPtr(true),
		Models:       map[string]core.ModelOverride{"b": {Enable: boolPtr(false)}},
		CustomModels: []core.CustomModel{{ID: "c"}},
	}

	assert.Equal(t, []string{"a", "c"}, ids(MergeConfig(upstreamModels("a", "b"), cfg, fixedNow)))
	assert.Equal(t, []string{"a", "b"}, ids(MergeConfig(upstreamModels("a", "b"), nil, fixedNow)))
}

func TestUpstreamID(t *testing.T) {
	upstream := upstreamModels("GPT-4o", "claude-3", "old", "gemini")
	cfg := &core.ModelsConfig{
		Models: map[string]core.ModelOverride{
			"claude-3": {Mapping: "gpt-4o"},
			"old":      {Enable: boolPtr(false), Mapping: "new"},
			"gemini":   {Mapping: "G-Pro"},
		},
		CustomModels: []core.CustomModel{{ID: "house-bot"}},
	}

	tests := []struct {
		name   string
		id     string
		want   string
		wantOK bool
	}{
		{"renamed id maps back", "g-pro", "gemini", true},
		{"match ignores case", "G-PRO", "gemini", true},
		{"shadowed rename keeps the listed upstream model", "gpt-4o", "gpt-4o", true},
		{"disabled mapping is not listed", "new", "", false},
		{"disabled upstream is not listed", "old", "", false},
		{"renamed-away id is not listed", "gemini", "", false},
		{"custom entries have no upstream", "house-bot", "", false},
		{"unknown id", "nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UpstreamID(upstream, cfg, tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpstreamID_SharedTargetFollowsUpstreamOrder(t *testing.T) {
	cfg := &core.ModelsConfig{Models: map[string]core.ModelOverride{
		"a": {Mapping: "alias"},
		"b": {Mapping: "alias"},
	}}

	for i := 0; i < 20; i++ {
		got, ok := UpstreamID(upstreamModels("b", "a"), cfg, "alias")
		require.True(t, ok)
		assert.Equal(t, "b", got, "the record emitted first owns the listed id")
	}
}

func TestUpstreamID_AgreesWithMerge(t *testing.T) {
	upstream := upstreamModels("x", "y", "z")
	cfg := &core.ModelsConfig{Models: map[string]core.ModelOverride{
		"x": {Mapping: "y"},
		"z": {Enable: boolPtr(false)},
	}}

	for _, m := range MergeConfig(upstream, cfg, fixedNow) {
		origin, ok := UpstreamID(upstream, cfg, m.ID)
		require.True(t, ok, m.ID)
		var created int64
		for _, u := range upstream {
			if u.ID == origin {
				created = u.Created
			}
		}
		assert.Equal(t, m.Created, created, "listed %s must resolve to the record it was built from", m.ID)
	}
	_, ok := UpstreamID(upstream, nil, "x")
	assert.True(t, ok, "nil config lists upstream ids unchanged")
}
