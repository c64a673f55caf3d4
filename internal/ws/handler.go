package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appconfig "github.com/hiet-studio/companion-server/internal/config"
	"github.com/hiet-studio/companion-server/internal/gemini"
	"github.com/hiet-studio/companion-server/internal/live"
	"github.com/hiet-studio/companion-server/internal/protocol"
	"github.com/hiet-studio/companion-server/internal/registry"
	"github.com/hiet-studio/companion-server/internal/storage"
	"github.com/hiet-studio/companion-server/internal/transport/wire"
	"github.com/hiet-studio/companion-server/pkg/audio"
)

const mediaAcquireTimeout = 15 * time.Second

// Handler represents a handler.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	config   appconfig.Config
	registry *registry.Manager
	sessions map[string]*session
	mu       sync.Mutex
}

// session is one connected studio shell. It owns the engine session for its
// client and stands in for the browser's devices: mic frames and camera
// snapshots arrive over the websocket, so the session implements live.Media
// on the engine's behalf.
type session struct {
	conn      *websocket.Conn
	sendMu    sync.Mutex
	logger    *zap.Logger
	handler   *Handler
	clientUID string

	mu        sync.Mutex
	engine    *live.Session
	persona   appconfig.PersonaConfig
	micRate   int
	micCh     int
	micCodec  string
	binFormat int
	lastFrame []byte

	mediaMu      sync.Mutex
	mediaWaiters map[string]chan mediaResult
}

// NewHandler executes the newHandler function.
func NewHandler(logger *zap.Logger, cfg appconfig.Config) *Handler {
	return &Handler{
		logger:   logger,
		config:   cfg,
		registry: registry.NewManager(),
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle executes the handle method.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		conn:         conn,
		logger:       h.logger,
		handler:      h,
		clientUID:    uuid.NewString(),
		persona:      h.config.PersonaConfig,
		micRate:      h.config.InputSampleRate,
		micCh:        1,
		micCodec:     "pcm16",
		binFormat:    wire.FormatRaw,
		mediaWaiters: make(map[string]chan mediaResult),
	}

	sess.logger.Info("ws session opened",
		zap.String("client_uid", sess.clientUID),
		zap.String("persona", sess.persona.Name),
		zap.Int("input_sample_rate", sess.micRate),
	)

	h.registerSession(sess)
	sess.sendHello()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("ws connection closed", zap.Error(err))
			break
		}
		if msgType == websocket.BinaryMessage {
			sess.handleBinary(ctx, data)
			continue
		}
		var msg protocol.ClientCommand
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.sendJSON(map[string]any{"type": "error", "message": "invalid json"})
			continue
		}
		if msg.Type != "heartbeat" {
			sess.logger.Debug("ws incoming message",
				zap.String("client_uid", sess.clientUID),
				zap.String("type", msg.Type),
			)
		}
		sess.dispatchIncoming(ctx, msg)
	}

	sess.shutdown()
	sess.logger.Info("ws session closed", zap.String("client_uid", sess.clientUID))
	h.unregisterSession(sess.clientUID)
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	h.sessions[sess.clientUID] = sess
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(clientUID string) {
	h.mu.Lock()
	delete(h.sessions, clientUID)
	h.mu.Unlock()
	h.registry.Remove(clientUID)
}

func (s *session) sendHello() {
	s.sendJSON(map[string]any{
		"type":              "hello",
		"client_uid":        s.clientUID,
		"persona":           personaPayload(s.persona),
		"input_sample_rate": s.handler.config.InputSampleRate,
		"binary_formats":    []int{wire.FormatRaw, wire.FormatHeadered},
	})
}

func personaPayload(persona appconfig.PersonaConfig) map[string]any {
	return map[string]any{
		"name":   persona.Name,
		"voice":  persona.Voice,
		"avatar": persona.Avatar,
	}
}

// shutdown ends any running engine session when the shell disconnects.
func (s *session) shutdown() {
	engine := s.currentEngine()
	if engine != nil {
		engine.Stop()
	}
	s.mediaMu.Lock()
	for id, ch := range s.mediaWaiters {
		delete(s.mediaWaiters, id)
		close(ch)
	}
	s.mediaMu.Unlock()
}

func (s *session) currentEngine() *live.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *session) startLive(ctx context.Context, video bool) {
	cfg := s.handler.config
	s.mu.Lock()
	persona := s.persona
	s.mu.Unlock()

	opts := live.Options{
		Config: live.SessionConfig{
			Model:               cfg.GeminiModel,
			Voice:               persona.Voice,
			SystemInstruction:   persona.SystemInstruction,
			OutputTranscription: true,
		},
		InputSampleRate:  cfg.InputSampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
		BlockSize:        cfg.CaptureBlockSize,
		VideoInterval:    time.Duration(cfg.VideoIntervalMS) * time.Millisecond,
		TranscriptLimit:  cfg.TranscriptLimit,
	}
	transport := gemini.NewLiveTransport(gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, s.logger)
	clock := live.NewWallClock()
	sink := &playbackSink{sess: s, clock: clock}
	events := live.Events{
		OnActive: func() {
			s.sendJSON(map[string]any{"type": "session-active", "persona": personaPayload(persona)})
		},
		OnEnded: s.handleSessionEnded,
		OnLevel: func(level float64) {
			s.sendJSON(map[string]any{"type": "mic-level", "level": level})
		},
		OnTranscript: func(text string) {
			s.sendJSON(map[string]any{"type": "transcript", "text": text})
		},
	}

	engine := live.NewSession(opts, transport, s, clock, sink, events, s.logger)
	if !s.handler.registry.Put(s.clientUID, engine) {
		s.sendJSON(map[string]any{"type": "error", "message": "a live session is already running"})
		return
	}
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	if err := engine.Start(ctx, video); err != nil {
		s.logger.Warn("live session start failed", zap.Error(err))
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
	}
}

func (s *session) stopLive() {
	engine := s.currentEngine()
	if engine == nil {
		return
	}
	engine.Stop()
}

func (s *session) handleSessionEnded(reason string) {
	s.sendJSON(map[string]any{"type": "session-ended", "reason": reason})
	s.persistTranscript()
}

func (s *session) persistTranscript() {
	engine := s.currentEngine()
	if engine == nil {
		return
	}
	entries := engine.Transcript()
	if len(entries) == 0 {
		return
	}
	now := time.Now().Format(time.RFC3339)
	fragments := make([]storage.Fragment, 0, len(entries))
	for _, entry := range entries {
		fragments = append(fragments, storage.Fragment{Text: entry, Timestamp: now})
	}
	uid, err := storage.SaveTranscript(s.handler.config.TranscriptsDir, s.clientUID, fragments)
	if err != nil {
		s.logger.Warn("transcript save failed", zap.Error(err))
		return
	}
	s.logger.Info("transcript saved",
		zap.String("client_uid", s.clientUID),
		zap.String("transcript_uid", uid),
		zap.Int("fragments", len(fragments)),
	)
	s.sendJSON(map[string]any{"type": "transcript-saved", "transcript_uid": uid})
}

// Acquire implements live.Media: it asks the shell for device permission and
// waits for the response.
func (s *session) Acquire(ctx context.Context, video bool) error {
	id := newRequestID()
	ch := make(chan mediaResult, 1)
	s.mediaMu.Lock()
	s.mediaWaiters[id] = ch
	s.mediaMu.Unlock()

	s.sendJSON(map[string]any{
		"type":       "media-request",
		"request_id": id,
		"video":      video,
	})

	defer func() {
		s.mediaMu.Lock()
		delete(s.mediaWaiters, id)
		s.mediaMu.Unlock()
	}()

	select {
	case resp, ok := <-ch:
		if !ok {
			return errors.New("connection closed during media acquisition")
		}
		if !resp.Success {
			if resp.Message != "" {
				return errors.New(resp.Message)
			}
			return errors.New("media permission denied")
		}
		return nil
	case <-time.After(mediaAcquireTimeout):
		return errors.New("media acquisition timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot implements live.Media: the most recent camera frame pushed by the
// shell.
func (s *session) Snapshot() ([]byte, error) {
	s.mu.Lock()
	frame := s.lastFrame
	s.mu.Unlock()
	if len(frame) == 0 {
		return nil, errors.New("no camera frame available")
	}
	return frame, nil
}

// Release implements live.Media.
func (s *session) Release() {
	s.mu.Lock()
	s.lastFrame = nil
	s.mu.Unlock()
	s.sendJSON(map[string]any{"type": "media-release"})
}

func (s *session) handleMediaResult(msg protocol.ClientCommand) {
	if msg.RequestID == "" || msg.Success == nil {
		return
	}
	resp := mediaResult{Success: *msg.Success, Message: msg.Message}
	s.mediaMu.Lock()
	ch, ok := s.mediaWaiters[msg.RequestID]
	if ok {
		delete(s.mediaWaiters, msg.RequestID)
	}
	s.mediaMu.Unlock()
	if ok {
		ch <- resp
	}
}

func (s *session) handleMicAudio(msg protocol.ClientCommand) {
	engine := s.currentEngine()
	if engine == nil {
		return
	}
	rate, ch := s.micFormat(msg.AudioRate, msg.AudioCh)

	switch {
	case msg.Opus != "":
		frame, err := base64.StdEncoding.DecodeString(msg.Opus)
		if err != nil {
			s.sendJSON(map[string]any{"type": "error", "message": "invalid opus payload"})
			return
		}
		if err := engine.PushMicOpus(frame, rate, ch); err != nil {
			s.logger.Warn("opus mic push failed", zap.Error(err))
			s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		}
	case msg.AudioPCM != "":
		data, err := base64.StdEncoding.DecodeString(msg.AudioPCM)
		if err != nil {
			s.sendJSON(map[string]any{"type": "error", "message": "invalid pcm payload"})
			return
		}
		s.pushPCM16(engine, data, rate, ch)
	case len(msg.Audio) > 0:
		samples := float64ToFloat32(msg.Audio)
		if err := engine.PushMicSamples(samples, rate); err != nil {
			s.logger.Warn("mic push failed", zap.Error(err))
		}
	}
}

func (s *session) pushPCM16(engine *live.Session, data []byte, rate int, ch int) {
	channels, err := audio.DecodePCM16Float32(data, ch)
	if err != nil {
		s.logger.Warn("dropping malformed mic payload", zap.Error(err))
		return
	}
	if err := engine.PushMicSamples(monoFloat32(channels), rate); err != nil {
		s.logger.Warn("mic push failed", zap.Error(err))
	}
}

func (s *session) handleMicFormat(msg protocol.ClientCommand) {
	s.mu.Lock()
	if msg.AudioRate > 0 {
		s.micRate = msg.AudioRate
	}
	if msg.AudioCh > 0 {
		s.micCh = msg.AudioCh
	}
	if msg.Codec != "" {
		s.micCodec = msg.Codec
	}
	s.binFormat = wire.NormalizeFormat(msg.BinaryFormat)
	rate, ch, codec, format := s.micRate, s.micCh, s.micCodec, s.binFormat
	s.mu.Unlock()

	s.logger.Info("mic format negotiated",
		zap.String("client_uid", s.clientUID),
		zap.Int("sample_rate", rate),
		zap.Int("channels", ch),
		zap.String("codec", codec),
		zap.Int("binary_format", format),
	)
	s.sendJSON(map[string]any{"type": "mic-format-ack", "binary_format": format})
}

func (s *session) micFormat(rate int, ch int) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rate <= 0 {
		rate = s.micRate
	}
	if ch <= 0 {
		ch = s.micCh
	}
	return rate, ch
}

// handleBinary decodes a framed mic payload. Commands tunneled over the
// binary channel are dispatched like JSON text messages.
func (s *session) handleBinary(ctx context.Context, data []byte) {
	s.mu.Lock()
	format := s.binFormat
	codec := s.micCodec
	s.mu.Unlock()

	payload, kind, err := wire.Decode(format, data)
	if err != nil {
		s.logger.Warn("undecodable binary frame", zap.Error(err))
		return
	}
	if kind == wire.PayloadKindCommand {
		var msg protocol.ClientCommand
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("undecodable binary command", zap.Error(err))
			return
		}
		s.dispatchIncoming(ctx, msg)
		return
	}

	engine := s.currentEngine()
	if engine == nil {
		return
	}
	rate, ch := s.micFormat(0, 0)
	if codec == "opus" {
		if err := engine.PushMicOpus(payload, rate, ch); err != nil {
			s.logger.Warn("opus mic push failed", zap.Error(err))
		}
		return
	}
	s.pushPCM16(engine, payload, rate, ch)
}

func (s *session) handleVideoFrame(msg protocol.ClientCommand) {
	if msg.Image == "" {
		return
	}
	frame, err := decodeFrameImage(msg.Image)
	if err != nil {
		s.logger.Debug("undecodable video frame", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.lastFrame = frame
	s.mu.Unlock()
}

func (s *session) handleFetchPresets() {
	presets := appconfig.ScanPresetFiles(s.handler.config.PersonaConfig, s.handler.config.PresetsDir)
	s.sendJSON(map[string]any{"type": "preset-files", "presets": presets})
}

func (s *session) handleSwitchPreset(filename string) {
	if filename == "" {
		return
	}
	persona := s.handler.config.PersonaConfig
	if filename != "conf.yaml" {
		loaded, err := appconfig.ReadPersonaPreset(filepath.Join(s.handler.config.PresetsDir, filepath.Base(filename)))
		if err != nil {
			s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
			return
		}
		persona = loaded
	}
	s.mu.Lock()
	s.persona = persona
	s.mu.Unlock()
	s.sendJSON(map[string]any{"type": "preset-switched", "persona": personaPayload(persona)})
}

func (s *session) handleFetchTranscripts() {
	list := storage.ListTranscripts(s.handler.config.TranscriptsDir, s.clientUID)
	s.sendJSON(map[string]any{"type": "transcript-list", "transcripts": list})
}

func (s *session) handleFetchTranscript(transcriptUID string) {
	if transcriptUID == "" {
		return
	}
	fragments, err := storage.GetTranscript(s.handler.config.TranscriptsDir, s.clientUID, transcriptUID)
	if err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	s.sendJSON(map[string]any{"type": "transcript-data", "transcript_uid": transcriptUID, "fragments": fragments})
}

func (s *session) handleDeleteTranscript(transcriptUID string) {
	if transcriptUID == "" {
		return
	}
	success := storage.DeleteTranscript(s.handler.config.TranscriptsDir, s.clientUID, transcriptUID)
	s.sendJSON(map[string]any{"type": "transcript-deleted", "success": success, "transcript_uid": transcriptUID})
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("ws send failed", zap.Error(err))
	}
}

// playbackSink forwards scheduled chunks to the shell for audible playback.
// A timer anchored on the session clock drives natural completion.
type playbackSink struct {
	sess  *session
	clock live.Clock
}

type playbackSource struct {
	sess  *session
	id    string
	mu    sync.Mutex
	timer *time.Timer
}

// Play implements live.Sink.
func (p *playbackSink) Play(chunk live.PlaybackChunk) (live.Source, error) {
	source := &playbackSource{sess: p.sess, id: uuid.NewString()}
	pcm := audio.EncodeFloat32PCM16(chunk.Samples)

	delay := time.Duration((chunk.StartAt + chunk.Duration - p.clock.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	source.mu.Lock()
	source.timer = time.AfterFunc(delay, func() {
		engine := p.sess.currentEngine()
		if engine != nil {
			engine.PlaybackFinished(source)
		}
	})
	source.mu.Unlock()

	p.sess.sendJSON(map[string]any{
		"type":              "audio",
		"chunk_id":          source.id,
		"audio_pcm":         base64.StdEncoding.EncodeToString(pcm),
		"audio_sample_rate": chunk.SampleRate,
		"start_at":          chunk.StartAt,
		"duration":          chunk.Duration,
	})
	return source, nil
}

// Stop implements live.Source: the shell drops the chunk immediately.
func (s *playbackSource) Stop() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.sess.sendJSON(map[string]any{"type": "audio-stop", "chunk_id": s.id})
}

func newRequestID() string {
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}

func decodeFrameImage(data string) ([]byte, error) {
	if data == "" {
		return nil, errors.New("empty frame image")
	}
	if strings.HasPrefix(data, "data:") {
		parts := strings.SplitN(data, ",", 2)
		if len(parts) != 2 {
			return nil, errors.New("invalid data url")
		}
		return base64.StdEncoding.DecodeString(parts[1])
	}
	return base64.StdEncoding.DecodeString(data)
}

func float64ToFloat32(samples []float64) []float32 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]float32, len(samples))
	for i, sample := range samples {
		out[i] = float32(sample)
	}
	return out
}

// monoFloat32 averages de-interleaved channels down to one.
func monoFloat32(channels [][]float32) []float32 {
	if len(channels) == 1 {
		return channels[0]
	}
	frames := len(channels[0])
	out := make([]float32, frames)
	for frame := 0; frame < frames; frame++ {
		sum := float32(0)
		for _, channel := range channels {
			sum += channel[frame]
		}
		out[frame] = sum / float32(len(channels))
	}
	return out
}
