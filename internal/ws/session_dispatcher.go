package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/hiet-studio/companion-server/internal/protocol"
)

type incomingHandler func(context.Context, protocol.ClientCommand)

func (s *session) dispatchIncoming(ctx context.Context, msg protocol.ClientCommand) {
	handlers := map[string]incomingHandler{
		"start-live":        s.onStartLive,
		"stop-live":         s.onStopLive,
		"mic-audio-data":    s.onMicAudioData,
		"mic-format":        s.onMicFormat,
		"video-frame":       s.onVideoFrame,
		"media-result":      s.onMediaResult,
		"fetch-presets":     s.onFetchPresets,
		"switch-preset":     s.onSwitchPreset,
		"fetch-transcripts": s.onFetchTranscripts,
		"fetch-transcript":  s.onFetchTranscript,
		"delete-transcript": s.onDeleteTranscript,
		"heartbeat":         s.onNoop,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("client_uid", s.clientUID),
		zap.String("type", msg.Type),
	)
}

func (s *session) onStartLive(ctx context.Context, msg protocol.ClientCommand) {
	video := msg.Video != nil && *msg.Video
	// Media acquisition waits for a shell reply that arrives over this same
	// read loop, so the start runs off it.
	go s.startLive(ctx, video)
}

func (s *session) onStopLive(_ context.Context, _ protocol.ClientCommand) {
	s.stopLive()
}

func (s *session) onMicAudioData(_ context.Context, msg protocol.ClientCommand) {
	s.handleMicAudio(msg)
}

func (s *session) onMicFormat(_ context.Context, msg protocol.ClientCommand) {
	s.handleMicFormat(msg)
}

func (s *session) onVideoFrame(_ context.Context, msg protocol.ClientCommand) {
	s.handleVideoFrame(msg)
}

func (s *session) onMediaResult(_ context.Context, msg protocol.ClientCommand) {
	s.handleMediaResult(msg)
}

func (s *session) onFetchPresets(_ context.Context, _ protocol.ClientCommand) {
	s.handleFetchPresets()
}

func (s *session) onSwitchPreset(_ context.Context, msg protocol.ClientCommand) {
	s.handleSwitchPreset(msg.Preset)
}

func (s *session) onFetchTranscripts(_ context.Context, _ protocol.ClientCommand) {
	s.handleFetchTranscripts()
}

func (s *session) onFetchTranscript(_ context.Context, msg protocol.ClientCommand) {
	s.handleFetchTranscript(msg.TranscriptUID)
}

func (s *session) onDeleteTranscript(_ context.Context, msg protocol.ClientCommand) {
	s.handleDeleteTranscript(msg.TranscriptUID)
}

func (s *session) onNoop(_ context.Context, _ protocol.ClientCommand) {}
