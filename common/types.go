package common

// InputType selects where the source text comes from.
type InputType string

const (
	InputText InputType = "text"
	InputPDF  InputType = "pdf"
	InputURL  InputType = "url"
)

// PipelineConfig carries everything one generation run needs.
type PipelineConfig struct {
	InputType InputType
	InputData string // raw text, PDF path, or URL depending on InputType
	VideoType string // threaded through to upload metadata, unused by the core
	OutputDir string

	GeminiKey     string
	ImageEndpoint string // image synthesis backend base URL
	ClipEndpoint  string // optional video clip backend base URL
	ClipKey       string

	WordBudget   int    // words per segment, 0 means the 150 default
	MotionEffect string // in, out, left, right, up, down, random
	VoiceConfig  string // path to the voice profile YAML table

	Upload      bool
	UploadTitle string
	UploadDesc  string
	UploadTags  []string
}

// Progress is one notification emitted by a running pipeline. Exactly one
// update per run carries Done=true, with either a success Message or Error.
type Progress struct {
	Message string `json:"message"`
	Percent int    `json:"percent"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// VoiceProfile holds resolved speech synthesis parameters. The zero value is
// valid and means "let the backend pick its defaults".
type VoiceProfile struct {
	Name         string  `yaml:"name" json:"name"`
	LanguageCode string  `yaml:"language_code" json:"language_code"`
	SpeakingRate float64 `yaml:"speaking_rate" json:"speaking_rate"`
	Pitch        float64 `yaml:"pitch" json:"pitch"`
}

// VoiceTable maps profile keys (e.g. "child_female_soft", "male_default",
// "narrator") to synthesis parameters.
type VoiceTable map[string]VoiceProfile
