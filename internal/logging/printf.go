package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PrintfLogger exposes a Logger through the Printf/Fatalf pair expected by
// libraries such as goose.
type PrintfLogger struct {
	l Logger
}

func NewPrintfLogger(l Logger) *PrintfLogger {
	return &PrintfLogger{l: l}
}

func (p *PrintfLogger) Printf(format string, v ...any) {
	p.l.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level and exits like log.Fatalf.
func (p *PrintfLogger) Fatalf(format string, v ...any) {
	p.l.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
