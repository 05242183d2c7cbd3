package kiosk

import "log"

// Notifier is the transient user-facing status surface. It is not a system
// of record; messages may be dropped when nobody is watching.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Info(msg string)  { log.Printf("notice: %s", msg) }
func (LogNotifier) Warn(msg string)  { log.Printf("warning: %s", msg) }
func (LogNotifier) Error(msg string) { log.Printf("error: %s", msg) }
