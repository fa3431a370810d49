package story

// Traits are optional voice-selection hints the model attaches to a speaker.
type Traits struct {
	Age           string   `json:"age,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	Personality   []string `json:"personality,omitempty"`
	EmotionalTone string   `json:"emotional_tone,omitempty"`
}

// ScriptLine is one spoken part of a screenplay, in playback order.
type ScriptLine struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Traits  *Traits `json:"traits,omitempty"`
}

// Dialogue is the legacy single-narrator dialogue shape.
type Dialogue struct {
	Character string `json:"character"`
	Line      string `json:"line"`
}

// Screenplay is the structured interpretation of one text segment.
type Screenplay struct {
	SceneDescription string       `json:"scene_description"`
	AudioScript      []ScriptLine `json:"audio_script,omitempty"`
	Dialogues        []Dialogue   `json:"dialogues,omitempty"`
	VoiceoverText    string       `json:"voiceover_text,omitempty"`

	// IsFallback marks screenplays built locally after the structuring call
	// failed or returned an unusable shape. FallbackErr keeps the cause for
	// diagnostics.
	IsFallback  bool   `json:"is_fallback,omitempty"`
	FallbackErr string `json:"fallback_error,omitempty"`
}

// Scene is the fully resolved per-segment bundle carried into assembly.
// Never mutated after creation.
type Scene struct {
	ImagePath     string      `json:"image_path"`
	VideoClipPath string      `json:"video_clip_path,omitempty"`
	AudioPath     string      `json:"audio_path"`
	SpokenText    string      `json:"spoken_text"`
	Screenplay    *Screenplay `json:"screenplay"`
	RawSegment    string      `json:"raw_segment"`
}

// Cue is one timed caption entry. Start and End are seconds from the top of
// the video; Start of cue i equals End of cue i-1 and the first Start is 0.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}
