// Package remote
package remote

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"bluegreen-server/internal/domain"
)

const (
	initialScannerBufferSize = 4096
	maxScannerBufferSize     = 10 * 1024 * 1024
)

// output collects both streams of a command and forwards every non-empty line
// to the command's handler. stdout is kept byte for byte, stderr as lines.
type output struct {
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
	onLine domain.LineHandler
}

func newOutput(onLine domain.LineHandler) *output {
	return &output{onLine: onLine}
}

func (o *output) consume(r io.Reader, stream domain.LogStream) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialScannerBufferSize), maxScannerBufferSize)

	for scanner.Scan() {
		for _, line := range normalizeAndSplitLines(scanner.Text()) {
			o.append(line, stream)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s stream error: %w", stream, err)
	}

	return nil
}

func (o *output) append(line string, stream domain.LogStream) {
	if stream == domain.StreamStderr {
		o.mu.Lock()
		o.stderr.WriteString(line)
		o.stderr.WriteByte('\n')
		o.mu.Unlock()
	}

	if l := strings.TrimSpace(line); l != "" && o.onLine != nil {
		o.onLine(l, stream)
	}
}

// pipes returns writers for both streams of a running command. wait closes
// them, blocks until every line was consumed and returns the first stream
// error, if any.
func (o *output) pipes() (stdout, stderr io.Writer, wait func() error) {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	errChan := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(2)

	consume := func(r io.Reader, stream domain.LogStream) {
		defer wg.Done()
		if err := o.consume(r, stream); err != nil {
			errChan <- err
			io.Copy(io.Discard, r)
		}
	}

	go consume(outR, domain.StreamStdout)
	go consume(errR, domain.StreamStderr)

	wait = func() error {
		outW.Close()
		errW.Close()
		wg.Wait()
		close(errChan)
		return <-errChan
	}

	return io.MultiWriter(rawWriter{o}, outW), errW, wait
}

type rawWriter struct{ o *output }

func (w rawWriter) Write(p []byte) (int, error) {
	w.o.mu.Lock()
	defer w.o.mu.Unlock()
	return w.o.stdout.Write(p)
}

func (o *output) result(exitCode int) *domain.CommandResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	return &domain.CommandResult{
		Stdout:   o.stdout.String(),
		Stderr:   o.stderr.String(),
		ExitCode: exitCode,
	}
}

func normalizeAndSplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return strings.Split(text, "\n")
}
