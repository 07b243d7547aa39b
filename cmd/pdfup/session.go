package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/eiannone/keyboard"

	"github.com/chmdznr/pdfup/internal/controller"
	"github.com/chmdznr/pdfup/internal/view"
)

const sessionHelp = `Commands: [s] select file  [u] upload  [l] list uploaded  [h] help  [q] quit`

// keySource reads single key presses.
type keySource interface {
	ReadKey() (rune, keyboard.Key, error)
}

type terminalKeys struct{}

func (terminalKeys) ReadKey() (rune, keyboard.Key, error) {
	return keyboard.GetSingleKey()
}

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) readLine() (string, error) {
	line, err := lr.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

// session is the interactive form. Without a terminal (keys is nil or fails)
// it reads one command per line instead, e.g. "s report.pdf", "u", "l", "q".
type session struct {
	ctrl *controller.Controller
	in   *lineReader
	out  io.Writer
	keys keySource
}

func (s *session) run(ctx context.Context) error {
	fmt.Fprintln(s.out, sessionHelp)
	for {
		if ctx.Err() != nil {
			return nil
		}

		cmd, arg, err := s.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch cmd {
		case 's':
			s.selectFile(arg)
		case 'u':
			if _, err := s.ctrl.Submit(ctx); errors.Is(err, controller.ErrUploadInProgress) {
				fmt.Fprintln(s.out, "An upload is already running.")
			}
		case 'l':
			files, err := s.ctrl.Uploaded()
			if err != nil {
				return err
			}
			view.PrintList(s.out, files)
		case 'h', '?':
			fmt.Fprintln(s.out, sessionHelp)
		case 'q':
			return nil
		default:
			fmt.Fprintf(s.out, "Unknown command %q. %s\n", cmd, sessionHelp)
		}
	}
}

func (s *session) selectFile(path string) {
	if path == "" {
		fmt.Fprint(s.out, "File path: ")
		line, err := s.in.readLine()
		if err != nil {
			fmt.Fprintln(s.out)
			return
		}
		path = line
	}
	path = strings.Trim(strings.TrimSpace(path), `"'`)
	if err := s.ctrl.SelectFile(path, ""); err != nil {
		fmt.Fprintln(s.out, err)
	}
}

// next returns the next command and its argument, if one was typed on the same line.
func (s *session) next() (rune, string, error) {
	if s.keys != nil {
		ch, key, err := s.keys.ReadKey()
		if err == nil {
			switch key {
			case keyboard.KeyEsc, keyboard.KeyCtrlC, keyboard.KeyCtrlD:
				return 'q', "", nil
			}
			return unicode.ToLower(ch), "", nil
		}
		s.keys = nil
	}

	for {
		line, err := s.in.readLine()
		if err != nil {
			return 0, "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		return unicode.ToLower([]rune(cmd)[0]), strings.TrimSpace(arg), nil
	}
}
