package story

import (
	"strings"

	"github.com/sirupsen/logrus"

	"novel2video/common"
)

// VoiceSelector resolves a speaker identity to synthesis parameters. Each
// speaker is resolved once per run and cached so a character keeps the same
// voice across every appearance. Single worker per run, so the cache needs
// no locking.
type VoiceSelector struct {
	table common.VoiceTable
	cache map[string]common.VoiceProfile
}

func NewVoiceSelector(table common.VoiceTable) *VoiceSelector {
	return &VoiceSelector{
		table: table,
		cache: make(map[string]common.VoiceProfile),
	}
}

// Select returns the voice profile for a speaker, consulting the cache first.
// An empty profile table degrades every lookup to the zero profile so the
// audio backend applies its own defaults.
func (v *VoiceSelector) Select(speaker string, traits *Traits) common.VoiceProfile {
	key := strings.ToLower(strings.TrimSpace(speaker))
	if profile, ok := v.cache[key]; ok {
		return profile
	}

	var profile common.VoiceProfile
	if traits != nil {
		profile = v.fromTraits(traits)
	} else {
		profile = v.fromName(key)
	}

	v.cache[key] = profile
	logrus.Debugf("voice: resolved %q -> %q", speaker, profile.Name)
	return profile
}

// fromTraits maps normalized trait hints onto the configured profile table,
// relaxing the key one component at a time until something matches.
func (v *VoiceSelector) fromTraits(traits *Traits) common.VoiceProfile {
	age := normalizeAge(traits.Age)
	gender := normalizeGender(traits.Gender)
	style := deriveStyle(traits.EmotionalTone, traits.Personality)

	keys := []string{}
	if style != "" {
		keys = append(keys, age+"_"+gender+"_"+style)
	}
	keys = append(keys, age+"_"+gender, gender+"_default", "male_default")

	for _, key := range keys {
		if profile, ok := v.table[key]; ok {
			return profile
		}
	}
	return common.VoiceProfile{}
}

// fromName applies the legacy name heuristics used before trait hints
// existed: dedicated narrator profile, exact configured name, then keyword
// classification.
func (v *VoiceSelector) fromName(name string) common.VoiceProfile {
	if strings.Contains(name, "narrator") {
		if profile, ok := v.table["narrator"]; ok {
			return profile
		}
	}
	if profile, ok := v.table[name]; ok {
		return profile
	}

	key := "male_default"
	switch {
	case containsAny(name, childIndicators):
		key = "child_default"
	case containsAny(name, femaleIndicators):
		key = "female_default"
	}
	if profile, ok := v.table[key]; ok {
		return profile
	}
	if profile, ok := v.table["male_default"]; ok {
		return profile
	}
	return common.VoiceProfile{}
}

var childIndicators = []string{"child", "kid", "boy", "girl", "little", "young"}

var femaleIndicators = []string{
	"mrs", "ms", "miss", "lady", "madam", "queen", "princess",
	"mother", "mom", "mum", "grandma", "grandmother", "aunt", "sister", "daughter",
	"she", "her", "woman", "female",
}

func normalizeAge(age string) string {
	age = strings.ToLower(strings.TrimSpace(age))
	switch {
	case strings.Contains(age, "child"), strings.Contains(age, "kid"), strings.Contains(age, "little"):
		return "child"
	case strings.Contains(age, "teen"), strings.Contains(age, "adolescent"):
		return "teen"
	case strings.Contains(age, "young"):
		return "young_adult"
	case strings.Contains(age, "elder"), strings.Contains(age, "old"), strings.Contains(age, "senior"):
		return "elderly"
	default:
		return "adult"
	}
}

// normalizeGender folds everything the model might emit into the two
// configured buckets; ambiguous and "neutral" both land on male, matching
// the profile table's default.
func normalizeGender(gender string) string {
	if strings.Contains(strings.ToLower(gender), "female") {
		return "female"
	}
	return "male"
}

// styleOrder is the priority order for style qualifiers; the first style
// whose keyword list matches wins.
var styleOrder = []struct {
	style    string
	keywords []string
}{
	{"soft", []string{"soft", "whisper", "quiet", "shy", "timid"}},
	{"energetic", []string{"energetic", "excited", "cheerful", "loud", "bold", "shouted"}},
	{"calm", []string{"calm", "neutral", "steady", "patient"}},
	{"dramatic", []string{"dramatic", "intense", "theatrical", "sad", "angry"}},
	{"confident", []string{"confident", "authoritative", "assertive", "brave"}},
	{"wise", []string{"wise", "thoughtful", "sage", "knowing"}},
	{"gentle", []string{"gentle", "kind", "warm", "tender"}},
}

// deriveStyle checks the emotional tone first, then each personality tag.
// No match yields no style qualifier.
func deriveStyle(tone string, personality []string) string {
	candidates := append([]string{strings.ToLower(tone)}, lowerAll(personality)...)
	for _, entry := range styleOrder {
		for _, candidate := range candidates {
			if candidate == "" {
				continue
			}
			if containsAny(candidate, entry.keywords) {
				return entry.style
			}
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lowerAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.ToLower(item)
	}
	return out
}
