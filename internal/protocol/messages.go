package protocol

// ClientCommand represents a command sent from the studio shell to the
// companion server. It intentionally keeps wire-compatible field names with
// the current shell runtime.
type ClientCommand struct {
	Type          string    `json:"type"`
	Video         *bool     `json:"video,omitempty"`
	Preset        string    `json:"preset,omitempty"`
	Audio         []float64 `json:"audio,omitempty"`
	AudioPCM      string    `json:"audio_pcm,omitempty"`
	AudioRate     int       `json:"audio_sample_rate,omitempty"`
	AudioCh       int       `json:"audio_channels,omitempty"`
	Codec         string    `json:"codec,omitempty"`
	Opus          string    `json:"opus,omitempty"`
	Image         string    `json:"image,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	Success       *bool     `json:"success,omitempty"`
	Message       string    `json:"message,omitempty"`
	BinaryFormat  int       `json:"binary_format,omitempty"`
	TranscriptUID string    `json:"transcript_uid,omitempty"`
}
