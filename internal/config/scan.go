package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PresetFileInfo represents a presetFileInfo.
type PresetFileInfo struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
}

type presetFilePayload struct {
	PersonaConfig personaYAML `yaml:"persona_config"`
}

type personaYAML struct {
	Name              string `yaml:"name"`
	Voice             string `yaml:"voice"`
	SystemInstruction string `yaml:"system_instruction"`
	Avatar            string `yaml:"avatar"`
}

// ScanPresetFiles lists the configured persona plus every preset yaml found
// under presetsDir.
func ScanPresetFiles(defaultPersona PersonaConfig, presetsDir string) []PresetFileInfo {
	presets := []PresetFileInfo{}
	name := defaultPersona.Name
	if name == "" {
		name = "conf.yaml"
	}
	presets = append(presets, PresetFileInfo{Filename: "conf.yaml", Name: name})

	if presetsDir == "" {
		return presets
	}

	_ = filepath.WalkDir(presetsDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		persona, err := ReadPersonaPreset(path)
		name := d.Name()
		if err == nil && persona.Name != "" {
			name = persona.Name
		}
		presets = append(presets, PresetFileInfo{Filename: d.Name(), Name: name})
		return nil
	})

	return presets
}

// ReadPersonaPreset executes the readPersonaPreset function.
func ReadPersonaPreset(path string) (PersonaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PersonaConfig{}, err
	}
	var payload presetFilePayload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return PersonaConfig{}, err
	}
	persona := PersonaConfig{
		Name:              payload.PersonaConfig.Name,
		Voice:             payload.PersonaConfig.Voice,
		SystemInstruction: payload.PersonaConfig.SystemInstruction,
		Avatar:            payload.PersonaConfig.Avatar,
	}
	if persona.Name == "" {
		persona.Name = filepath.Base(path)
	}
	return persona, nil
}
