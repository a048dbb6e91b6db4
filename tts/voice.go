package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// VoiceSettings describes how a clip is synthesized.
type VoiceSettings struct {
	ID     string            `yaml:"id" mapstructure:"id"`
	Engine string            `yaml:"engine" mapstructure:"engine"`
	Voice  string            `yaml:"voice" mapstructure:"voice"`
	Speed  float64           `yaml:"speed" mapstructure:"speed"`
	Pitch  float64           `yaml:"pitch" mapstructure:"pitch"`
	Volume float64           `yaml:"volume" mapstructure:"volume"`
	Extra  map[string]string `yaml:"extra" mapstructure:"extra"`
}

// IsZero reports whether no field is set.
func (v VoiceSettings) IsZero() bool {
	return v.ID == "" && v.Engine == "" && v.Voice == "" &&
		v.Speed == 0 && v.Pitch == 0 && v.Volume == 0 && len(v.Extra) == 0
}

// Fingerprint returns a stable string covering every field that changes
// the synthesized audio. ID is a label and is excluded.
func (v VoiceSettings) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%.3f|%.3f|%.3f", v.Engine, v.Voice, v.Speed, v.Pitch, v.Volume)
	keys := make([]string, 0, len(v.Extra))
	for k := range v.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, v.Extra[k])
	}
	return b.String()
}

// ClipID returns the cache fingerprint for text spoken with voice.
func ClipID(text string, voice VoiceSettings) string {
	sum := sha256.Sum256([]byte(voice.Fingerprint() + ":" + text))
	return hex.EncodeToString(sum[:])
}

// VoicePresets is a VoiceCatalog backed by a map.
type VoicePresets map[string]VoiceSettings

// Voice implements VoiceCatalog.
func (p VoicePresets) Voice(id string) (VoiceSettings, bool) {
	v, ok := p[id]
	if ok && v.ID == "" {
		v.ID = id
	}
	return v, ok
}

// IDs returns the preset ids in sorted order.
func (p VoicePresets) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// voiceSource holds the three voice inputs of a speaker in priority order.
type voiceSource struct {
	override *VoiceSettings
	presetID string
	custom   *VoiceSettings
	catalog  VoiceCatalog
}

// resolve picks the voice for a speak call. The override only applies while
// the speaker is active.
func (s voiceSource) resolve(active bool) (VoiceSettings, error) {
	if active && s.override != nil {
		return *s.override, nil
	}
	if s.presetID != "" && s.catalog != nil {
		if v, ok := s.catalog.Voice(s.presetID); ok {
			return v, nil
		}
	}
	if s.custom != nil {
		return *s.custom, nil
	}
	if s.presetID != "" {
		return VoiceSettings{}, fmt.Errorf("%w: preset %q not found", ErrVoiceResolution, s.presetID)
	}
	return VoiceSettings{}, ErrVoiceResolution
}
