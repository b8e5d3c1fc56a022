// Package common provides the shared logging and error-handling
// infrastructure for the Sandstone document service.
//
// The logging system is built on logrus with custom output handling that
// routes error-level messages to stderr while sending other levels to
// stdout, enabling proper stream separation for containerized deployments
// where orchestrators treat the two streams differently.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stdout or stderr based on
// their severity level. Error messages (containing "level=error") go to
// stderr for immediate attention; info, debug, and warning messages go to
// stdout for general log processing.
//
// The check is a plain byte search on the formatted output, so it works
// with both text and JSON formatters without parsing.
type OutputSplitter struct{}

// Write implements io.Writer, inspecting each log line and selecting the
// destination stream.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the global logger instance for the service. All packages log
// through it (directly or via WithFields entries) so that formatting,
// level filtering, and stream routing stay uniform.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// ConfigureLogging applies the level and format from configuration to the
// global logger. Unknown levels fall back to info; any format other than
// "json" selects the text formatter.
func ConfigureLogging(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
