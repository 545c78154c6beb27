package engine

import (
	"slices"

	"github.com/google/uuid"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
)

// featureNamespace scopes the name-based ids of auto-granted feature items.
var featureNamespace = uuid.MustParse("6f1c2b0e-4d7a-5c3e-9a8b-2f0d1e3c4b5a")

// FeatureItemID is the stable id of the item granting feature to a
// character from source. Repeated syncs produce the same id.
func FeatureItemID(characterID, source, feature string) string {
	return uuid.NewSHA1(featureNamespace, []byte(characterID+"/"+source+"/"+feature)).String()
}

type grantKey struct{ source, feature string }

type grant struct {
	key      grantKey
	feature  ruleset.Feature
	featType string
}

// desiredFeatures lists the features the character's classes (up to their
// level), templates and race should grant, in a stable order.
func (p *pass) desiredFeatures() []grant {
	var out []grant
	for _, ci := range p.classes {
		if ci.template == nil {
			continue
		}
		features := slices.Clone(ci.template.Features)
		slices.SortStableFunc(features, func(a, b ruleset.Feature) int { return a.Level - b.Level })
		featType := "classFeat"
		if ci.prog.Type == ruleset.ClassTemplate {
			featType = "template"
		}
		for _, f := range features {
			if f.Level <= ci.item.Level {
				out = append(out, grant{key: grantKey{ci.template.ID, f.ID}, feature: f, featType: featType})
			}
		}
	}
	if p.race != nil {
		for _, f := range p.race.Features {
			out = append(out, grant{key: grantKey{p.race.ID, f.ID}, feature: f, featType: "racial"})
		}
	}
	return out
}

// featureSync compares the desired features with the feats already carrying
// a GrantedBy marker.
func (p *pass) featureSync() FeatureSync {
	have := map[grantKey]string{}
	for _, it := range p.c.Items {
		if f, ok := it.(*item.Feat); ok && f.GrantedBy != nil {
			have[grantKey{f.GrantedBy.Source, f.GrantedBy.Feature}] = f.ID
		}
	}
	var fs FeatureSync
	want := map[grantKey]bool{}
	for _, g := range p.desiredFeatures() {
		if want[g.key] {
			continue
		}
		want[g.key] = true
		if _, ok := have[g.key]; ok {
			continue
		}
		flags := make([]change.Flag, len(g.feature.Flags))
		for i, f := range g.feature.Flags {
			flags[i] = change.Flag(f)
		}
		fs.Create = append(fs.Create, &item.Feat{
			Common: item.Common{
				ID:          FeatureItemID(p.c.ID, g.key.source, g.key.feature),
				Name:        g.feature.Name,
				Type:        item.KindFeat,
				Changes:     slices.Clone(g.feature.Changes),
				ChangeFlags: flags,
			},
			FeatType:  g.featType,
			GrantedBy: &item.GrantedBy{Source: g.key.source, Feature: g.key.feature},
		})
	}
	for k, id := range have {
		if !want[k] {
			fs.Delete = append(fs.Delete, id)
		}
	}
	slices.Sort(fs.Delete)
	return fs
}

// ApplyFeatureSync returns a copy of c with fs applied to its items.
func ApplyFeatureSync(c *character.Character, fs FeatureSync) *character.Character {
	out := c.Clone()
	out.Items = slices.DeleteFunc(out.Items, func(it item.Item) bool {
		return slices.Contains(fs.Delete, it.Base().ID)
	})
	for _, f := range fs.Create {
		out.Items = append(out.Items, f)
	}
	return out
}
