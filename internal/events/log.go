package events

import "github.com/rs/zerolog"

// LogSink writes events to a zerolog logger.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Emit(e Event) {
	var ev *zerolog.Event
	switch {
	case e.Kind == KindError || e.Level == LevelError:
		ev = s.Logger.Error()
	case e.Level == LevelWarn:
		ev = s.Logger.Warn()
	case e.Kind == KindProgress, e.Kind == KindJump, e.Level == LevelDebug:
		ev = s.Logger.Debug()
	default:
		ev = s.Logger.Info()
	}
	ev = ev.Str("kind", string(e.Kind))
	if p := e.Progress; p != nil {
		ev = ev.Str("phase", p.Phase).
			Int("messages", p.Messages).
			Int("threads", p.Threads).
			Int("pending_threads", p.PendingThreads).
			Int("percent", p.Percent)
	}
	if j := e.Jump; j != nil {
		ev = ev.Str("target", j.Target).
			Str("direction", j.Direction).
			Int("attempt", j.Attempt).
			Str("oldest", j.Oldest).
			Str("newest", j.Newest)
	}
	ev.Msg(e.Message)
}
