package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	sseDataPrefix  = "data: "
	sseDoneMarker  = "[DONE]"
	deltaPath      = "choices.0.delta.content"
	streamReadSize = 4096
)

// FragmentHandler is called once per content fragment, in arrival order,
// with the fragment and the accumulated content including it.
type FragmentHandler func(fragment, total string)

type lineResult int

const (
	lineSkipped lineResult = iota
	lineEmitted
	lineDone
	lineIncomplete
)

// StreamDecoder turns a chunked chat-completions SSE body into content
// fragments. Chunks may split lines, JSON tokens, or UTF-8 sequences anywhere.
type StreamDecoder struct {
	buf        []byte
	content    strings.Builder
	done       bool
	onFragment FragmentHandler
}

func NewStreamDecoder(onFragment FragmentHandler) *StreamDecoder {
	return &StreamDecoder{onFragment: onFragment}
}

// Write consumes one chunk and reports whether the [DONE] marker was reached.
// Once it returns true, further chunks are ignored.
func (d *StreamDecoder) Write(chunk []byte) bool {
	if d.done {
		return true
	}
	d.buf = append(d.buf, chunk...)

	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return false
		}
		line := strings.TrimSuffix(string(d.buf[:idx]), "\r")
		d.buf = d.buf[idx+1:]

		switch d.handleLine(line) {
		case lineDone:
			d.done = true
			d.buf = nil
			return true
		case lineIncomplete:
			// Treat the line as cut short; wait for the next chunk before retrying.
			d.buf = append([]byte(line+"\n"), d.buf...)
			return false
		}
	}
}

// Flush runs whatever is still buffered through the line rules once.
// Lines that are not valid JSON are dropped.
func (d *StreamDecoder) Flush() {
	rest := string(d.buf)
	d.buf = nil
	if d.done || strings.TrimSpace(rest) == "" {
		return
	}

	for _, raw := range strings.Split(rest, "\n") {
		if raw == "" {
			continue
		}
		if d.handleLine(strings.TrimSuffix(raw, "\r")) == lineDone {
			d.done = true
			return
		}
	}
}

// Done reports whether the terminator has been seen.
func (d *StreamDecoder) Done() bool {
	return d.done
}

// Content returns the concatenation of every fragment emitted so far.
func (d *StreamDecoder) Content() string {
	return d.content.String()
}

// DecodeStream reads r until EOF or the terminator, then flushes.
// A read error is returned as is, wrapped; the partial content is returned with it.
func (d *StreamDecoder) DecodeStream(ctx context.Context, r io.Reader) (string, error) {
	buf := make([]byte, streamReadSize)
	for !d.done {
		if err := ctx.Err(); err != nil {
			return d.Content(), err
		}

		n, err := r.Read(buf)
		if n > 0 {
			d.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return d.Content(), fmt.Errorf("read stream: %w", err)
		}
	}

	d.Flush()
	return d.Content(), nil
}

func (d *StreamDecoder) handleLine(line string) lineResult {
	if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return lineSkipped
	}
	if !strings.HasPrefix(line, sseDataPrefix) {
		return lineSkipped
	}

	payload := strings.TrimSpace(line[len(sseDataPrefix):])
	if payload == sseDoneMarker {
		return lineDone
	}
	if !gjson.Valid(payload) {
		return lineIncomplete
	}

	delta := gjson.Get(payload, deltaPath)
	if delta.Type != gjson.String || delta.Str == "" {
		return lineSkipped
	}

	fragment := strings.ToValidUTF8(delta.Str, "\uFFFD")
	d.content.WriteString(fragment)
	if d.onFragment != nil {
		d.onFragment(fragment, d.content.String())
	}
	return lineEmitted
}
