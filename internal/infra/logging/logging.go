package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Dir   string // empty: console only
	Level string
	Now   func() time.Time
}

// New builds the process logger: console at the configured level, a daily
// file with everything from debug up, and a daily errors-only file.
// The returned close func flushes and closes the files.
func New(opts Options) (*logrus.Logger, func() error, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}

	l := logrus.New()
	l.SetFormatter(formatter)
	l.SetOutput(os.Stdout)
	l.SetLevel(lvl)

	if opts.Dir == "" {
		return l, func() error { return nil }, nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("log dir: %w", err)
	}

	day := opts.Now().Format("2006-01-02")
	all, err := openAppend(filepath.Join(opts.Dir, "bot_"+day+".log"))
	if err != nil {
		return nil, nil, err
	}
	errs, err := openAppend(filepath.Join(opts.Dir, "errors_"+day+".log"))
	if err != nil {
		_ = all.Close()
		return nil, nil, err
	}

	// the file sinks want debug even when the console doesn't
	if lvl < logrus.DebugLevel {
		l.SetLevel(logrus.DebugLevel)
		l.SetOutput(io.Discard)
		l.AddHook(&writerHook{w: os.Stdout, levels: levelsUpTo(lvl), formatter: formatter})
	}
	l.AddHook(&writerHook{w: all, levels: levelsUpTo(logrus.DebugLevel), formatter: formatter})
	l.AddHook(&writerHook{w: errs, levels: levelsUpTo(logrus.ErrorLevel), formatter: formatter})

	closeFn := func() error {
		err1 := all.Close()
		err2 := errs.Close()
		if err1 != nil {
			return err1
		}
		return err2
	}
	return l, closeFn, nil
}

// Component scopes l to one part of the bot.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return f, nil
}

func levelsUpTo(limit logrus.Level) []logrus.Level {
	var out []logrus.Level
	for _, lv := range logrus.AllLevels {
		if lv <= limit {
			out = append(out, lv)
		}
	}
	return out
}

type writerHook struct {
	w         io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level { return h.levels }

func (h *writerHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}
