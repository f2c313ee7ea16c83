// Package nlog - see nlog.go for the implementation.
package nlog

import "flag"

// InitFlags registers the logger's command-line flags on flset, in the
// teacher's style of wiring logging options through the process's own
// flag.FlagSet rather than a separate config file.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of buffering to the writer")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as the writer")
}

// SetTitle sets a string printed once, at process start, ahead of any
// logged line, e.g. to identify the binary and version.
func SetTitle(s string) { title = s }

func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
