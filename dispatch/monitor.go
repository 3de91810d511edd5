package dispatch

import (
	"log/slog"
	"time"

	"github.com/poiesic/askq/core"
)

// Monitor observes questions moving through the dispatcher. Methods are
// called synchronously from submitters, workers and pollers, so they must
// be fast and safe for concurrent use.
type Monitor interface {
	Queued(id core.QuestionID)
	Started(id core.QuestionID, worker int)
	Published(id core.QuestionID, frag core.Fragment)
	Answered(id core.QuestionID, elapsed time.Duration, err error)
	Polled(id core.QuestionID, answer core.Answer)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) Queued(core.QuestionID)                         {}
func (noopMonitor) Started(core.QuestionID, int)                   {}
func (noopMonitor) Published(core.QuestionID, core.Fragment)       {}
func (noopMonitor) Answered(core.QuestionID, time.Duration, error) {}
func (noopMonitor) Polled(core.QuestionID, core.Answer)            {}

// LogMonitor logs question lifecycle events.
type LogMonitor struct {
	logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor writing to logger, or slog.Default()
// when nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger}
}

func (m *LogMonitor) Queued(id core.QuestionID) {
	m.logger.Debug("question queued", "question", id)
}

func (m *LogMonitor) Started(id core.QuestionID, worker int) {
	m.logger.Info("asking", "question", id, "worker", worker)
}

func (m *LogMonitor) Published(id core.QuestionID, frag core.Fragment) {
	m.logger.Debug("fragment published", "question", id, "bytes", len(frag.Text), "finished", frag.Finished)
}

func (m *LogMonitor) Answered(id core.QuestionID, elapsed time.Duration, err error) {
	if err != nil {
		m.logger.Warn("answer failed", "question", id, "elapsed", elapsed, "err", err)
		return
	}
	m.logger.Info("answer complete", "question", id, "elapsed", elapsed)
}

func (m *LogMonitor) Polled(id core.QuestionID, answer core.Answer) {
	m.logger.Debug("answer polled", "question", id, "bytes", len(answer.Text), "finished", answer.Finished)
}
