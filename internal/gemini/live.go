package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hiet-studio/companion-server/internal/live"
)

// Config selects the Gemini backend for one server process.
type Config struct {
	APIKey string
	Model  string
}

// LiveTransport adapts the Gemini Live API to the engine's transport
// contract. One transport carries at most one session; there is no
// reconnection, a dead session is reported once through OnClose and the
// caller starts fresh.
type LiveTransport struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	client  *genai.Client
	session *genai.Session
	closed  bool
}

// NewLiveTransport creates an unconnected transport.
func NewLiveTransport(cfg Config, logger *zap.Logger) *LiveTransport {
	return &LiveTransport{cfg: cfg, logger: logger}
}

// Connect opens the live session and starts the receive loop. OnOpen fires
// once the session is established.
func (t *LiveTransport) Connect(ctx context.Context, cfg live.SessionConfig, callbacks live.Callbacks) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  t.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return err
	}

	model := cfg.Model
	if model == "" {
		model = t.cfg.Model
	}
	connectConfig := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if cfg.Voice != "" {
		connectConfig.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.SystemInstruction != "" {
		connectConfig.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if cfg.OutputTranscription {
		connectConfig.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	session, err := client.Live.Connect(ctx, model, connectConfig)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = session.Close()
		return errors.New("transport already closed")
	}
	t.client = client
	t.session = session
	t.mu.Unlock()

	t.logger.Info("gemini live session connected", zap.String("model", model), zap.String("voice", cfg.Voice))

	go t.receiveLoop(session, callbacks)
	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}
	return nil
}

// SendAudioFrame pushes one PCM16LE mic frame.
func (t *LiveTransport) SendAudioFrame(ctx context.Context, pcm []byte) error {
	return t.sendBlob(ctx, pcm, live.MimeAudioPCM16k)
}

// SendVideoFrame pushes one JPEG camera snapshot.
func (t *LiveTransport) SendVideoFrame(ctx context.Context, jpeg []byte) error {
	return t.sendBlob(ctx, jpeg, live.MimeImageJPEG)
}

func (t *LiveTransport) sendBlob(ctx context.Context, data []byte, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()
	if session == nil {
		return errors.New("gemini live session not ready")
	}
	return session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

// Close ends the session. The receive loop reports a clean close.
func (t *LiveTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	session := t.session
	t.session = nil
	t.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Close()
}

func (t *LiveTransport) receiveLoop(session *genai.Session, callbacks live.Callbacks) {
	for {
		msg, err := session.Receive()
		if err != nil {
			if callbacks.OnClose == nil {
				return
			}
			if t.isClosed() {
				callbacks.OnClose(nil)
			} else {
				callbacks.OnClose(err)
			}
			return
		}
		t.dispatch(msg, callbacks)
	}
}

// dispatch maps one server message into engine events, preserving the order
// audio -> interruption -> transcription the wire delivers them in.
func (t *LiveTransport) dispatch(msg *genai.LiveServerMessage, callbacks live.Callbacks) {
	if msg == nil || msg.ServerContent == nil || callbacks.OnMessage == nil {
		return
	}
	content := msg.ServerContent

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			callbacks.OnMessage(live.ServerMessage{
				AudioBase64: base64.StdEncoding.EncodeToString(part.InlineData.Data),
			})
		}
	}
	if content.Interrupted {
		callbacks.OnMessage(live.ServerMessage{Interrupted: true})
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		callbacks.OnMessage(live.ServerMessage{Transcript: content.OutputTranscription.Text})
	}
}

func (t *LiveTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
