// Package obslog configures the core's structured logger, adapted from the
// teacher's observability/logging: a JSON slog.Handler with renamed
// timestamp/severity/message keys and a "component" attribute stamped on
// every line, bridging the standard log package for any remaining call
// sites that still use it.
package obslog

import (
	"io"
	"log"
	"log/slog"
	"strings"
)

// Setup configures a JSON slog.Logger for the given component name and
// writer (production wires os.Stdout; tests wire a bytes.Buffer) and
// installs it as the process default.
func Setup(w io.Writer, component string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			default:
				return attr
			}
		},
	})

	base := slog.New(handler).With(slog.String("component", strings.TrimSpace(component)))
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler, slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
