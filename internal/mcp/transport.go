package mcp

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// Transport frames JSON-RPC messages as newline-delimited JSON: one object
// per line, no embedded newlines. Reads are owned by the server loop;
// writes are serialized by a mutex.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	wmu    sync.Mutex
}

// NewTransport wraps a reader/writer pair, usually stdin/stdout.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		reader: bufio.NewReaderSize(r, 1024*1024),
		writer: w,
	}
}

// ReadLine returns the next non-empty line without its trailing newline.
// io.EOF signals a clean shutdown.
func (t *Transport) ReadLine() (string, error) {
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) != "" {
				// Final message without a trailing newline.
				return strings.TrimSpace(line), nil
			}
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}

// WriteMessage marshals v onto a single line followed by '\n'.
func (t *Transport) WriteMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return err
	}
	_, err = t.writer.Write([]byte{'\n'})
	return err
}
