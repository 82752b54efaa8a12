// Package sqlscript provides splitting SQL scripts into statements.
package sqlscript

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode"
	"unicode/utf8"
)

// DefaultSeparator is the default script statement separator.
const DefaultSeparator = ';'

const (
	nl          = '\n'
	cr          = '\r'
	minus       = '-'
	slash       = '/'
	asterisk    = '*'
	singleQuote = '\''
	doubleQuote = '"'
	backQuote   = '`'
)

var blockCommentEnd = []byte("*/")

type scanner struct {
	separator rune
	comments  bool
	data      []byte
	atEOF     bool
	token     []byte
	size      int
	// safe counts the bytes consumed up to the end of the last terminated
	// leading comment, so that comment-only input is not held back waiting
	// for more data.
	safe int
	// pending records whitespace between token runes, so that runs of
	// spaces and line breaks collapse into a single space.
	pending bool
}

func (s *scanner) init(data []byte, atEOF bool) {
	s.data, s.atEOF, s.token, s.pending = data, atEOF, nil, false
	s.size, s.safe = len(data), 0
}

// markSafe records the current position as consumable. Once comment text is
// attached to the token the position is no longer safe to drop.
func (s *scanner) markSafe() {
	if len(s.token) == 0 {
		s.safe = s.size - len(s.data)
	}
}

func (s *scanner) nextRune() (rune, int, error) {
	if len(s.data) < 1 {
		return -1, 0, io.EOF
	}

	// ASCII
	if s.data[0] < utf8.RuneSelf {
		return rune(s.data[0]), 1, nil
	}

	// correct UTF-8 decode without error
	if r, width := utf8.DecodeRune(s.data); width > 1 {
		return r, width, nil
	}
	return -1, 0, io.EOF
}

func (s *scanner) peekRune() (rune, error) {
	r, _, err := s.nextRune()
	return r, err
}

func (s *scanner) readRune() (rune, error) {
	r, width, err := s.nextRune()
	s.data = s.data[width:]
	return r, err
}

func (s *scanner) appendRune(r rune) {
	if unicode.IsSpace(r) {
		if len(s.token) != 0 {
			s.pending = true
		}
		return
	}
	s.flushPending()
	s.token = utf8.AppendRune(s.token, r)
}

// appendVerbatim keeps a rune as is, whitespace included. Used inside
// quoted strings.
func (s *scanner) appendVerbatim(r rune) {
	s.flushPending()
	s.token = utf8.AppendRune(s.token, r)
}

func (s *scanner) flushPending() {
	if s.pending {
		s.pending = false
		s.token = append(s.token, ' ')
	}
}

func (s *scanner) appendLine(data []byte) {
	l := len(data)
	if l == 0 {
		return
	}
	if data[l-1] == cr { // cut off trailing \r
		l--
	}
	s.token = append(s.token, data[:l]...)
}

func (s *scanner) scanWhitespace() error {
	for {
		r, err := s.peekRune()
		if err != nil {
			return err
		}
		if !unicode.IsSpace(r) {
			return nil
		}
		if _, err := s.readRune(); err != nil {
			return err
		}
	}
}

// scanComment consumes a leading line comment. If comments is set the
// comment text is attached to the token.
func (s *scanner) scanComment() (bool, error) {
	if len(s.data) < 2 {
		if s.atEOF {
			return false, nil
		}
		return false, io.EOF
	}

	if s.data[0] != minus || s.data[1] != minus {
		return false, nil
	}

	if i := bytes.IndexByte(s.data, nl); i >= 0 {
		// terminated line
		if s.comments {
			s.appendLine(s.data[:i])
		}
		s.data = s.data[i+1:]
		return true, nil
	}

	if s.atEOF {
		// non-terminated final line
		if s.comments {
			s.appendLine(s.data)
		}
		s.data = s.data[len(s.data):]
		return true, nil
	}

	// need more data
	return false, io.EOF
}

// scanBlockComment consumes a leading /* ... */ comment. Block comments are
// always discarded.
func (s *scanner) scanBlockComment() (bool, error) {
	if len(s.data) < 2 {
		if s.atEOF {
			return false, nil
		}
		return false, io.EOF
	}

	if s.data[0] != slash || s.data[1] != asterisk {
		return false, nil
	}
	return true, s.skipBlockComment()
}

// skipBlockComment drops a block comment whose opening /* is at the start of
// the remaining data.
func (s *scanner) skipBlockComment() error {
	if i := bytes.Index(s.data[2:], blockCommentEnd); i >= 0 {
		s.data = s.data[2+i+2:]
		return nil
	}
	if s.atEOF {
		// non-terminated final comment
		s.data = s.data[len(s.data):]
		return nil
	}
	return io.EOF
}

// skipLineComment drops a line comment whose opening -- is at the start of
// the remaining data.
func (s *scanner) skipLineComment() error {
	if i := bytes.IndexByte(s.data, nl); i >= 0 {
		s.data = s.data[i+1:]
		s.pending = len(s.token) != 0
		return nil
	}
	if s.atEOF {
		s.data = s.data[len(s.data):]
		return nil
	}
	return io.EOF
}

func (s *scanner) scanString(quote rune) error {
	s.appendVerbatim(quote)
	for {
		r, err := s.readRune()
		if err != nil {
			return err
		}
		s.appendVerbatim(r)
		if r == quote {
			r2, err := s.peekRune()
			if err != nil {
				if s.atEOF {
					return nil
				}
				return err
			}
			if r2 != quote {
				return nil
			}
			// doubled quote: keep both and stay inside the string
			if _, err := s.readRune(); err != nil {
				return err
			}
			s.appendVerbatim(r2)
		}
	}
}

func (s *scanner) scanStatement() (bool, error) {
	for {
		r, err := s.readRune()
		if err != nil {
			return false, err
		}

		switch r {
		case singleQuote, doubleQuote, backQuote:
			if err := s.scanString(r); err != nil {
				return false, err
			}
		case minus:
			r2, err := s.peekRune()
			if err != nil && !s.atEOF {
				return false, err
			}
			if err == nil && r2 == minus {
				if err := s.skipLineComment(); err != nil {
					return false, err
				}
				continue
			}
			s.appendRune(r)
		case slash:
			r2, err := s.peekRune()
			if err != nil && !s.atEOF {
				return false, err
			}
			if err == nil && r2 == asterisk {
				// step back to the opening slash for skipBlockComment
				if err := s.skipBlockCommentAt(); err != nil {
					return false, err
				}
				s.pending = len(s.token) != 0
				continue
			}
			s.appendRune(r)
		case s.separator:
			return true, nil
		default:
			s.appendRune(r)
		}
	}
}

// skipBlockCommentAt drops a block comment whose opening slash has already
// been consumed.
func (s *scanner) skipBlockCommentAt() error {
	if i := bytes.Index(s.data[1:], blockCommentEnd); i >= 0 {
		s.data = s.data[1+i+2:]
		return nil
	}
	if s.atEOF {
		s.data = s.data[len(s.data):]
		return nil
	}
	return io.EOF
}

func (s *scanner) _scan() (bool, error) {
	for {
		if err := s.scanWhitespace(); err != nil {
			return false, err
		}
		ok, err := s.scanComment()
		if err != nil {
			return false, err
		}
		if ok {
			if s.comments {
				s.token = append(s.token, nl)
			}
			s.markSafe()
			continue
		}
		ok, err = s.scanBlockComment()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		s.markSafe()
	}
	return s.scanStatement()
}

func (s *scanner) scan(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	s.init(data, atEOF)

	ok, err := s._scan()
	if errors.Is(err, io.EOF) {
		if !s.atEOF {
			// consume terminated leading comments, wait for the rest
			return s.safe, nil, nil
		}
		// flush a final statement without a trailing separator
		if len(s.token) == 0 {
			return len(data), nil, nil
		}
		return len(data), s.token, nil
	}
	if err != nil {
		return 0, nil, err
	}

	advance := len(data) - len(s.data)

	if !ok { // no statement found
		if atEOF {
			return advance, nil, nil // seems like the script does only consist of comments
		}
		return 0, nil, nil // need more data to find the first statement
	}

	return advance, s.token, nil
}

// Scan is a split function for a bufio.Scanner that returns each statement as a token.
// It uses the default separator ';'. Comments are discarded - for adding leading comments
// to each statement or specify a different separator please use ScanFunc.
func Scan(data []byte, atEOF bool) (advance int, token []byte, err error) {
	s := scanner{separator: DefaultSeparator, comments: false}
	return s.scan(data, atEOF)
}

// ScanFunc returns a split function for a bufio.Scanner that returns each statement as a token.
// In contrast of using the Scan function directly, the statement separator can be specified.
// If comments is true, leading line comments are added to each statement and discarded otherwise.
func ScanFunc(separator rune, comments bool) bufio.SplitFunc {
	s := scanner{separator: separator, comments: comments}
	return s.scan
}

// Statements splits script into its complete statements and the trailing
// incomplete remainder. It is meant for interactive input, where the
// remainder stays in the edit buffer until a separator arrives.
func Statements(script string) (stmts []string, rest string) {
	data := []byte(script)
	consumed := 0
	s := scanner{separator: DefaultSeparator, comments: false}
	for {
		advance, token, err := s.scan(data[consumed:], false)
		if err != nil || advance == 0 {
			break
		}
		consumed += advance
		if token != nil {
			stmts = append(stmts, string(token))
		}
	}
	return stmts, script[consumed:]
}
