// Package logging builds the process logger. Every entry passes through a hook
// that masks national IDs, phone numbers and passwords before it is
// formatted.
package logging

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options for New
type Options struct {
	Level string    // logrus level name, info when empty
	JSON  bool      // JSON formatter instead of text
	File  string    // Optional file that receives a copy of every entry
	Out   io.Writer // Defaults to stdout
}

// New returns a configured logger. The returned closer releases the log file
// and is never nil.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	if opts.Level == "" {
		opts.Level = "info"
	}
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	log.SetLevel(level)
	if opts.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}
	log.SetOutput(out)
	log.AddHook(MaskHook{})
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

const passwordMask = "********"

// MaskHook rewrites sensitive fields and message fragments.
type MaskHook struct{}

func (MaskHook) Levels() []logrus.Level { return logrus.AllLevels }

func (MaskHook) Fire(e *logrus.Entry) error {
	for k, v := range e.Data {
		switch strings.ToLower(k) {
		case "cedula", "national_id", "celular", "phone":
			e.Data[k] = MaskDigits(fmt.Sprint(v))
		case "password", "password_hash":
			e.Data[k] = passwordMask
		}
	}
	e.Message = MaskText(e.Message)
	return nil
}

// MaskDigits keeps the last four characters of s.
func MaskDigits(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

var (
	idPattern       = regexp.MustCompile(`(?i)(['"]?(?:cedula|celular|national_id|phone)['"]?\s*[:=]\s*['"]?)\d{6}(\d{4})`)
	passwordPattern = regexp.MustCompile(`(?i)(['"]?password['"]?\s*[:=]\s*)(?:'[^']*'|"[^"]*"|\S+)`)
)

// MaskText masks key/value fragments such as 'cedula': '1710034065' inside
// free text.
func MaskText(msg string) string {
	msg = idPattern.ReplaceAllString(msg, "${1}******${2}")
	return passwordPattern.ReplaceAllString(msg, "${1}"+passwordMask)
}
