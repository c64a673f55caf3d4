package live

import "context"

// Mime descriptors for outbound realtime frames.
const (
	MimeAudioPCM16k = "audio/pcm;rate=16000"
	MimeImageJPEG   = "image/jpeg"
)

// SessionConfig carries the open parameters for the remote model connection.
type SessionConfig struct {
	Model               string
	Voice               string
	SystemInstruction   string
	OutputTranscription bool
}

// ServerMessage is one inbound event from the remote model. At most one of
// the payload fields is set per message.
type ServerMessage struct {
	// AudioBase64 is a base64 PCM16LE mono chunk at the output sample rate.
	AudioBase64 string
	// Transcript is a fragment of the model's spoken-output transcription.
	Transcript string
	// Interrupted signals that queued local playback must be flushed.
	Interrupted bool
}

// Callbacks are invoked by the transport as connection events arrive.
// Delivery order follows the underlying stream.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(ServerMessage)
	// OnClose fires once when the connection ends. err is nil for a clean
	// close requested locally, non-nil for a failure or unsolicited close.
	OnClose func(err error)
}

// Transport delivers outbound audio/video frames to the remote session and
// routes inbound events. Sends are ordered per call and best-effort; there is
// no application-level retry.
type Transport interface {
	Connect(ctx context.Context, cfg SessionConfig, callbacks Callbacks) error
	SendAudioFrame(ctx context.Context, pcm []byte) error
	SendVideoFrame(ctx context.Context, jpeg []byte) error
	Close() error
}
