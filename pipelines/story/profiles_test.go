package story

import (
	"testing"

	"novel2video/common"
)

func testVoiceTable() common.VoiceTable {
	return common.VoiceTable{
		"narrator":          {Name: "en-US-Neural2-J", LanguageCode: "en-US", SpeakingRate: 0.95},
		"male_default":      {Name: "en-US-Neural2-D", LanguageCode: "en-US"},
		"female_default":    {Name: "en-US-Neural2-F", LanguageCode: "en-US"},
		"child_default":     {Name: "en-US-Neural2-A", LanguageCode: "en-US", Pitch: 4.0},
		"adult_female_soft": {Name: "en-US-Neural2-C", LanguageCode: "en-US", SpeakingRate: 0.9},
		"adult_female":      {Name: "en-US-Neural2-E", LanguageCode: "en-US"},
		"elderly_male_wise": {Name: "en-US-Neural2-B", LanguageCode: "en-US", SpeakingRate: 0.85},
		"mira":              {Name: "en-GB-Neural2-A", LanguageCode: "en-GB"},
	}
}

func TestSelectCachesPerSpeaker(t *testing.T) {
	sel := NewVoiceSelector(testVoiceTable())

	first := sel.Select("Elder Thomas", &Traits{Age: "elderly", Gender: "male", EmotionalTone: "wise"})
	if first.Name != "en-US-Neural2-B" {
		t.Fatalf("expected the elderly wise profile, got %q", first.Name)
	}

	// Conflicting traits on a later appearance must not change the voice.
	second := sel.Select("Elder Thomas", &Traits{Age: "child", Gender: "female", EmotionalTone: "energetic"})
	if second.Name != first.Name {
		t.Errorf("speaker voice changed between appearances: %q vs %q", first.Name, second.Name)
	}
}

func TestSelectTraitCascade(t *testing.T) {
	sel := NewVoiceSelector(testVoiceTable())

	cases := []struct {
		speaker string
		traits  *Traits
		want    string
	}{
		// Full key match: age_gender_style.
		{"Lina", &Traits{Age: "adult", Gender: "female", EmotionalTone: "soft"}, "en-US-Neural2-C"},
		// Style key missing, falls back to age_gender.
		{"Vera", &Traits{Age: "adult", Gender: "female", EmotionalTone: "dramatic"}, "en-US-Neural2-E"},
		// Both missing, falls back to gender_default.
		{"Old Pete", &Traits{Age: "elderly", Gender: "female"}, "en-US-Neural2-F"},
		// Everything missing, falls back to male_default.
		{"Stranger", &Traits{Age: "teen", Gender: "male"}, "en-US-Neural2-D"},
		// Neutral gender lands in the male bucket.
		{"Voice", &Traits{Age: "teen", Gender: "neutral"}, "en-US-Neural2-D"},
	}
	for _, tc := range cases {
		if got := sel.Select(tc.speaker, tc.traits); got.Name != tc.want {
			t.Errorf("Select(%q, %+v) = %q, want %q", tc.speaker, tc.traits, got.Name, tc.want)
		}
	}
}

func TestSelectNameHeuristics(t *testing.T) {
	sel := NewVoiceSelector(testVoiceTable())

	cases := []struct {
		speaker string
		want    string
	}{
		{"Narrator", "en-US-Neural2-J"},
		{"The Narrator", "en-US-Neural2-J"},
		{"Mira", "en-GB-Neural2-A"}, // exact configured name
		{"Little Boy", "en-US-Neural2-A"},
		{"Queen Isolde", "en-US-Neural2-F"},
		{"Grandmother", "en-US-Neural2-F"},
		{"Captain Holt", "en-US-Neural2-D"},
	}
	for _, tc := range cases {
		if got := sel.Select(tc.speaker, nil); got.Name != tc.want {
			t.Errorf("Select(%q) = %q, want %q", tc.speaker, got.Name, tc.want)
		}
	}
}

func TestSelectEmptyTable(t *testing.T) {
	sel := NewVoiceSelector(common.VoiceTable{})
	profile := sel.Select("Anyone", &Traits{Age: "adult", Gender: "female"})
	if profile.Name != "" || profile.LanguageCode != "" {
		t.Errorf("empty table should yield the zero profile, got %+v", profile)
	}
}

func TestDeriveStyle(t *testing.T) {
	cases := []struct {
		tone        string
		personality []string
		want        string
	}{
		{"soft-spoken", nil, "soft"},
		{"", []string{"brave", "kind"}, "confident"},
		{"excited", []string{"wise"}, "energetic"},
		{"", nil, ""},
		{"melancholy", []string{"mysterious"}, ""},
	}
	for _, tc := range cases {
		if got := deriveStyle(tc.tone, tc.personality); got != tc.want {
			t.Errorf("deriveStyle(%q, %v) = %q, want %q", tc.tone, tc.personality, got, tc.want)
		}
	}
}

func TestNormalizeAge(t *testing.T) {
	cases := map[string]string{
		"a young child": "child",
		"teenager":      "teen",
		"young adult":   "young_adult",
		"elderly":       "elderly",
		"old man":       "elderly",
		"middle-aged":   "adult",
		"":              "adult",
	}
	for in, want := range cases {
		if got := normalizeAge(in); got != want {
			t.Errorf("normalizeAge(%q) = %q, want %q", in, got, want)
		}
	}
}
