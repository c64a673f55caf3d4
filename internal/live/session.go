package live

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Media owns the microphone/camera device handles for one session.
type Media interface {
	// Acquire requests device permission. Failure is fatal to session start.
	Acquire(ctx context.Context, video bool) error
	// Snapshot returns the latest camera frame as JPEG. Only called while a
	// video-enabled session is active.
	Snapshot() ([]byte, error)
	// Release frees the device handles.
	Release()
}

// Events are the outbound surface consumed by the UI shell.
type Events struct {
	OnActive     func()
	OnEnded      func(reason string)
	OnLevel      func(level float64)
	OnTranscript func(text string)
}

// End reasons reported through Events.OnEnded.
const (
	EndReasonStopped = "stopped"
	EndReasonError   = "error"
)

// Options sizes one live session.
type Options struct {
	Config           SessionConfig
	InputSampleRate  int
	OutputSampleRate int
	BlockSize        int
	VideoInterval    time.Duration
	TranscriptLimit  int
}

func (o *Options) applyDefaults() {
	if o.InputSampleRate <= 0 {
		o.InputSampleRate = 16000
	}
	if o.OutputSampleRate <= 0 {
		o.OutputSampleRate = 24000
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 4096
	}
	if o.VideoInterval <= 0 {
		o.VideoInterval = time.Second
	}
	if o.TranscriptLimit <= 0 {
		o.TranscriptLimit = 4
	}
}

// Session is the single live audio/video exchange with the remote model. It
// owns the capture pipeline, the playback scheduler, the transcript log and
// the transport connection for its lifetime.
type Session struct {
	opts      Options
	transport Transport
	media     Media
	events    Events
	logger    *zap.Logger

	machine    *Machine
	scheduler  *Scheduler
	transcript *TranscriptLog

	mu           sync.Mutex
	capture      *CapturePipeline
	cancel       context.CancelFunc
	videoStop    chan struct{}
	videoEnabled bool
}

// NewSession wires a session around an injected transport, media provider and
// playback sink. Nothing connects until Start.
func NewSession(opts Options, transport Transport, media Media, clock Clock, sink Sink, events Events, logger *zap.Logger) *Session {
	opts.applyDefaults()
	return &Session{
		opts:       opts,
		transport:  transport,
		media:      media,
		events:     events,
		logger:     logger,
		machine:    NewMachine(),
		scheduler:  NewScheduler(clock, sink, opts.OutputSampleRate, logger),
		transcript: NewTranscriptLog(opts.TranscriptLimit),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.machine.State()
}

// Transcript returns the bounded spoken-output fragments.
func (s *Session) Transcript() []string {
	return s.transcript.Entries()
}

// Level returns the current mic amplitude, 0 when no capture is running.
func (s *Session) Level() float64 {
	s.mu.Lock()
	capture := s.capture
	s.mu.Unlock()
	if capture == nil {
		return 0
	}
	return capture.Level()
}

// Start opens the remote connection. Valid only when no session is running;
// a second call is rejected, not queued.
func (s *Session) Start(ctx context.Context, videoEnabled bool) error {
	if !s.machine.Startable() {
		return ErrSessionNotIdle
	}
	if err := s.machine.Transition(StateConnecting); err != nil {
		return ErrSessionNotIdle
	}

	if err := s.media.Acquire(ctx, videoEnabled); err != nil {
		s.logger.Warn("media acquisition failed", zap.Error(err))
		s.fail(EndReasonError)
		return &PermissionError{Err: err}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.videoEnabled = videoEnabled
	s.capture = NewCapturePipeline(
		CaptureConfig{SampleRate: s.opts.InputSampleRate, BlockSize: s.opts.BlockSize},
		s.transport.SendAudioFrame,
		s.events.OnLevel,
		s.logger,
	)
	s.mu.Unlock()

	callbacks := Callbacks{
		OnOpen:    func() { s.handleOpen(sessionCtx) },
		OnMessage: s.handleMessage,
		OnClose:   s.handleClose,
	}
	if err := s.transport.Connect(sessionCtx, s.opts.Config, callbacks); err != nil {
		s.logger.Warn("live connect failed", zap.Error(err))
		s.teardown()
		s.fail(EndReasonError)
		return &TransportError{Err: err}
	}
	return nil
}

// Stop closes the connection and releases every owned resource. Calling it
// when nothing is running is a no-op.
func (s *Session) Stop() {
	if !s.machine.Is(StateConnecting, StateActive) {
		return
	}
	if err := s.machine.Transition(StateClosing); err != nil {
		return
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("transport close", zap.Error(err))
	}
	s.teardown()
	if err := s.machine.Transition(StateClosed); err != nil {
		s.logger.Warn("close transition rejected", zap.Error(err))
	}
	s.logger.Info("live session stopped")
	if s.events.OnEnded != nil {
		s.events.OnEnded(EndReasonStopped)
	}
}

// PlaybackFinished reports the natural completion of a scheduled source. The
// sink calls it when a chunk plays out without interruption.
func (s *Session) PlaybackFinished(source Source) {
	s.scheduler.Finished(source)
}

// PushMicSamples feeds mic samples while the session is active.
func (s *Session) PushMicSamples(samples []float32, sampleRate int) error {
	capture := s.activeCapture()
	if capture == nil {
		return nil
	}
	return capture.PushSamples(samples, sampleRate)
}

// PushMicOpus feeds an opus-compressed mic frame while the session is active.
func (s *Session) PushMicOpus(frame []byte, sampleRate, channels int) error {
	capture := s.activeCapture()
	if capture == nil {
		return nil
	}
	return capture.PushOpus(frame, sampleRate, channels)
}

func (s *Session) activeCapture() *CapturePipeline {
	if !s.machine.Is(StateActive) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}

func (s *Session) handleOpen(ctx context.Context) {
	if err := s.machine.Transition(StateActive); err != nil {
		// Open raced with a stop; the teardown path wins.
		s.logger.Debug("open ignored", zap.Error(err))
		return
	}
	s.mu.Lock()
	capture := s.capture
	videoEnabled := s.videoEnabled
	var videoStop chan struct{}
	if videoEnabled {
		videoStop = make(chan struct{})
		s.videoStop = videoStop
	}
	s.mu.Unlock()

	if capture != nil {
		capture.Start(ctx)
	}
	if videoEnabled {
		go s.videoLoop(ctx, videoStop)
	}
	s.logger.Info("live session active", zap.Bool("video", videoEnabled))
	if s.events.OnActive != nil {
		s.events.OnActive()
	}
}

func (s *Session) handleMessage(msg ServerMessage) {
	switch {
	case msg.AudioBase64 != "":
		data, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
		if err != nil {
			s.logger.Warn("dropping undecodable audio chunk", zap.Error(err))
			return
		}
		// Malformed chunks are dropped inside Enqueue; the session stays up.
		_ = s.scheduler.Enqueue(data)
	case msg.Interrupted:
		s.scheduler.Interrupt()
	case msg.Transcript != "":
		s.transcript.Append(msg.Transcript)
		if s.events.OnTranscript != nil {
			s.events.OnTranscript(msg.Transcript)
		}
	}
}

func (s *Session) handleClose(err error) {
	if s.machine.Is(StateClosing, StateClosed, StateIdle, StateError) {
		// Local stop already ran teardown.
		return
	}
	if err != nil {
		s.logger.Warn("live connection lost", zap.Error(err))
	} else {
		s.logger.Info("live connection closed by remote")
	}
	s.teardown()
	s.fail(EndReasonError)
}

func (s *Session) videoLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(s.opts.VideoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			frame, err := s.media.Snapshot()
			if err != nil {
				s.logger.Debug("video snapshot unavailable", zap.Error(err))
				continue
			}
			if len(frame) == 0 {
				continue
			}
			if err := s.transport.SendVideoFrame(ctx, frame); err != nil {
				s.logger.Warn("video frame send failed", zap.Error(err))
			}
		}
	}
}

// teardown releases capture, video, playback and media state. Safe to call
// more than once.
func (s *Session) teardown() {
	s.mu.Lock()
	capture := s.capture
	s.capture = nil
	videoStop := s.videoStop
	s.videoStop = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if videoStop != nil {
		close(videoStop)
	}
	if cancel != nil {
		cancel()
	}
	s.scheduler.Interrupt()
	s.media.Release()
}

// fail moves the machine into the error state and reports the end.
func (s *Session) fail(reason string) {
	if err := s.machine.Transition(StateError); err != nil {
		s.logger.Debug("error transition rejected", zap.Error(err))
	}
	if s.events.OnEnded != nil {
		s.events.OnEnded(reason)
	}
}
