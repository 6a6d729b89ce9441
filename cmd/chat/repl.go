package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"yuno/models"
	"yuno/services"
)

const maxImageBytes = 10 << 20

// streamPrinter writes assistant deltas as the transcript grows.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	seen    int
	printed int
	active  bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// Reset marks the given transcript as already shown.
func (p *streamPrinter) Reset(transcript []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = len(transcript)
	p.printed = 0
	p.active = false
}

func (p *streamPrinter) Update(transcript []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(transcript)
	switch {
	case n < p.seen:
		// placeholder dropped after a failure
		p.seen = n
		p.endLine()
		return
	case n > p.seen:
		p.seen = n
		p.endLine()
		if transcript[n-1].Role != models.RoleAssistant {
			return
		}
		fmt.Fprint(p.w, "yuno: ")
		p.active = true
		p.printed = 0
	}

	if !p.active {
		return
	}
	content := transcript[n-1].Content
	if len(content) > p.printed {
		fmt.Fprint(p.w, content[p.printed:])
		p.printed = len(content)
	}
}

// Finish terminates the line of the answer being printed, if any.
func (p *streamPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
}

func (p *streamPrinter) endLine() {
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
}

// parseInput splits "/image <path> [text]" into its parts. Other lines are plain text.
func parseInput(line string) (text, imagePath string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/image ") {
		return line, ""
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
	imagePath, text, _ = strings.Cut(rest, " ")
	return strings.TrimSpace(text), imagePath
}

// imageDataURL encodes the file as a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("%s is larger than %d bytes", path, maxImageBytes)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, contentType)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func runREPL(ctx context.Context, in io.Reader, out io.Writer, session *services.ChatSession, printer *streamPrinter) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "/quit" {
			return nil
		}

		text, imagePath := parseInput(line)
		var image string
		if imagePath != "" {
			var err error
			if image, err = imageDataURL(imagePath); err != nil {
				fmt.Fprintln(out, "cannot attach image:", err)
				continue
			}
		}

		err := session.Submit(ctx, text, image)
		printer.Finish()

		var chatErr *services.ChatError
		switch {
		case err == nil, errors.As(err, &chatErr):
			// failures were already reported through the notifier
		case errors.Is(err, context.Canceled):
			return nil
		default:
			fmt.Fprintln(out, "error:", err)
		}
	}
}
