package catalog

import (
	"strings"
	"time"

	"poe2openai/internal/core"
)

// Merge applies override rules to the upstream list and appends custom models.
//
// Upstream order is kept, followed by customs in declaration order. Override keys
// must already be lowercase. Ids are unique in the output: when a rename collides
// with another record the first one emitted wins. now stamps customs that carry
// no created value.
func Merge(upstream []core.ModelInfo, overrides map[string]core.ModelOverride, customs []core.CustomModel, now time.Time) []core.ModelInfo {
	result := make([]core.ModelInfo, 0, len(upstream)+len(customs))
	emitted := make(map[string]struct{}, len(upstream)+len(customs))

	walkUpstream(upstream, overrides, emitted, func(_ string, model core.ModelInfo) {
		result = append(result, model)
	})

	for _, custom := range customs {
		id := strings.ToLower(custom.ID)
		if id == "" {
			continue
		}
		if _, ok := emitted[id]; ok {
			continue
		}
		if override, ok := overrides[id]; ok && override.Disabled() {
			continue
		}

		created := now.Unix()
		if custom.Created != nil {
			created = *custom.Created
		}
		ownedBy := custom.OwnedBy
		if ownedBy == "" {
			ownedBy = core.ModelOwner
		}

		result = append(result, core.ModelInfo{
			ID:      id,
			Object:  core.ModelObjectType,
			Created: created,
			OwnedBy: ownedBy,
		})
		emitted[id] = struct{}{}
	}

	return result
}

// MergeConfig is Merge driven by a models.yaml snapshot.
func MergeConfig(upstream []core.ModelInfo, cfg *core.ModelsConfig, now time.Time) []core.ModelInfo {
	if cfg == nil {
		return Merge(upstream, nil, nil, now)
	}
	return Merge(upstream, cfg.Models, cfg.CustomModels, now)
}

// UpstreamID returns the upstream model behind a listed id. ok is false when the
// merged listing has no upstream record under that id, e.g. custom entries or
// names produced by disabled or shadowed mappings. Matching ignores case.
func UpstreamID(upstream []core.ModelInfo, cfg *core.ModelsConfig, id string) (upstreamID string, ok bool) {
	var overrides map[string]core.ModelOverride
	if cfg != nil {
		overrides = cfg.Models
	}

	want := strings.ToLower(id)
	walkUpstream(upstream, overrides, make(map[string]struct{}, len(upstream)), func(origin string, model core.ModelInfo) {
		if !ok && model.ID == want {
			upstreamID, ok = origin, true
		}
	})
	return upstreamID, ok
}

// walkUpstream emits every upstream record that survives the overrides, renamed
// and lowercased, along with the lowercased upstream id it came from. Ids already
// in emitted are skipped; emitted ids are added to it.
func walkUpstream(upstream []core.ModelInfo, overrides map[string]core.ModelOverride, emitted map[string]struct{}, emit func(origin string, model core.ModelInfo)) {
	for _, model := range upstream {
		origin := strings.ToLower(model.ID)
		id := origin
		if override, ok := overrides[origin]; ok {
			if !override.Enabled() {
				continue
			}
			if override.Mapping != "" {
				id = strings.ToLower(override.Mapping)
			}
		}
		if _, dup := emitted[id]; dup {
			continue
		}
		model.ID = id
		emitted[id] = struct{}{}
		emit(origin, model)
	}
}
