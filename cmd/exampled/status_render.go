package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"daemonkit/internal/daemonctl"
	"daemonkit/internal/process"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func statusKindFor(status daemonctl.Status) statusKind {
	switch status.State {
	case process.Alive:
		return statusOK
	case process.AccessDenied:
		return statusWarn
	default:
		return statusError
	}
}

// statusMessage extends the status summary with the pid when one was read.
func statusMessage(status daemonctl.Status) string {
	msg := status.Message()
	if status.Running() {
		return fmt.Sprintf("%s (pid %d)", msg, status.PID)
	}
	if status.PidfilePresent {
		return fmt.Sprintf("%s (stale pidfile, pid %d)", msg, status.PID)
	}
	return msg
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
