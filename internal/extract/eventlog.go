package extract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/rpattn/sparkify/internal/domain"
)

// ActionSongPlayed is the page value of log lines that represent a play.
const ActionSongPlayed = "NextSong"

const maxLineSize = 1 << 20

// flexString accepts a JSON string or number. Log producers are inconsistent
// about userId.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type logLine struct {
	Page      string      `json:"page"`
	Ts        *int64      `json:"ts"`
	UserID    *flexString `json:"userId"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Gender    string      `json:"gender"`
	Level     string      `json:"level"`
	Song      string      `json:"song"`
	Artist    string      `json:"artist"`
	Length    float64     `json:"length"`
	SessionID int64       `json:"sessionId"`
	Location  string      `json:"location"`
	UserAgent string      `json:"userAgent"`
}

// ExtractEventLog returns the song-played events of a newline-delimited JSON
// log file. The file is opened on each iteration, so the sequence can be
// ranged over more than once. Iteration stops after the first error.
func ExtractEventLog(path string) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(domain.Event{}, &domain.ParseError{Path: path, Err: fmt.Errorf("open file: %w", err)})
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if lineNo == 1 {
				line = bytes.TrimPrefix(line, byteOrderMark)
			}
			if len(line) == 0 {
				continue
			}

			event, keep, err := parseLogLine(path, lineNo, line)
			if err != nil {
				yield(domain.Event{}, err)
				return
			}
			if !keep {
				continue
			}
			if !yield(event, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(domain.Event{}, &domain.ParseError{Path: path, Line: lineNo + 1, Err: err})
		}
	}
}

func parseLogLine(path string, lineNo int, line []byte) (domain.Event, bool, error) {
	var raw logLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return domain.Event{}, false, &domain.ParseError{Path: path, Line: lineNo, Err: fmt.Errorf("decode line: %w", err)}
	}
	if raw.Page != ActionSongPlayed {
		return domain.Event{}, false, nil
	}
	if raw.Ts == nil {
		return domain.Event{}, false, &domain.ParseError{Path: path, Line: lineNo, Field: "ts", Err: errors.New("required field missing")}
	}
	if raw.UserID == nil {
		return domain.Event{}, false, &domain.ParseError{Path: path, Line: lineNo, Field: "userId", Err: errors.New("required field missing")}
	}
	if strings.TrimSpace(string(*raw.UserID)) == "" {
		return domain.Event{}, false, fmt.Errorf("%s line %d: %w", path, lineNo, &domain.ValidationError{
			Field:   "userId",
			Value:   string(*raw.UserID),
			Message: "must not be empty on a song play",
		})
	}

	return domain.Event{
		Timestamp: *raw.Ts,
		UserID:    string(*raw.UserID),
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		Gender:    raw.Gender,
		Level:     raw.Level,
		Song:      raw.Song,
		Artist:    raw.Artist,
		Length:    raw.Length,
		SessionID: raw.SessionID,
		Location:  raw.Location,
		UserAgent: raw.UserAgent,
	}, true, nil
}
