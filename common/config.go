package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LoadEnv loads a .env file into the process environment. A missing file is
// not an error; CI and server deployments set real environment variables.
func LoadEnv(filename string) {
	if err := godotenv.Load(filename); err != nil {
		logrus.Debugf("no %s file loaded: %v", filename, err)
	}
}

// LoadVoiceTable reads the voice profile YAML. An empty path or a missing
// file yields an empty table, which downgrades every lookup to backend
// defaults rather than failing the run.
func LoadVoiceTable(path string) VoiceTable {
	if path == "" {
		return VoiceTable{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Warnf("voice profile table %s unavailable, using backend defaults: %v", path, err)
		return VoiceTable{}
	}
	var table VoiceTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		logrus.Warnf("voice profile table %s unparsable, using backend defaults: %v", path, err)
		return VoiceTable{}
	}
	normalized := make(VoiceTable, len(table))
	for key, profile := range table {
		normalized[strings.ToLower(strings.TrimSpace(key))] = profile
	}
	return normalized
}

// FromEnv fills backend credentials from the environment, leaving any value
// already set on the config untouched.
func (c *PipelineConfig) FromEnv() {
	if c.GeminiKey == "" {
		c.GeminiKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if c.ImageEndpoint == "" {
		c.ImageEndpoint = os.Getenv("IMAGE_API_URL")
	}
	if c.ClipEndpoint == "" {
		c.ClipEndpoint = os.Getenv("CLIP_API_URL")
	}
	if c.ClipKey == "" {
		c.ClipKey = os.Getenv("CLIP_API_KEY")
	}
	if c.VoiceConfig == "" {
		c.VoiceConfig = os.Getenv("VOICE_CONFIG")
	}
}

// Validate applies defaults and rejects configs no run could work with.
func (c *PipelineConfig) Validate() error {
	if c.InputData == "" {
		return fmt.Errorf("no input data provided")
	}
	switch c.InputType {
	case InputText, InputPDF, InputURL:
	case "":
		c.InputType = InputText
	default:
		return fmt.Errorf("unknown input type %q", c.InputType)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("no output directory provided")
	}
	if c.WordBudget <= 0 {
		c.WordBudget = DefaultWordBudget
	}
	if c.MotionEffect == "" {
		c.MotionEffect = "random"
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
