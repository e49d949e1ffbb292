// Package persistence implements the JSON-lines write-ahead log used by the
// journal and the raft FSM.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// WAL appends one JSON document per line and syncs after every write.
type WAL struct {
	mu   sync.Mutex
	file *os.File
}

// NewWAL opens path for appending, creating it if needed.
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	return &WAL{
		file: file,
	}, nil
}

// Append writes entry as a single line.
func (w *WAL) Append(entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode wal entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write wal entry: %w", err)
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	return w.file.Close()
}

// Replay calls applyFunc for each line of the log at path, in order.
// A log that does not exist yet replays nothing.
//
// When applyFunc rejects the final line, the line is taken to be a write torn
// by a crash: it is cut off the file and Replay succeeds. A rejected line
// anywhere else fails the replay.
func Replay(path string, applyFunc func(line []byte) error) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open wal: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var offset int64
	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read wal: %w", readErr)
		}
		if body := bytes.TrimRight(line, "\r\n"); len(body) > 0 {
			if err := applyFunc(body); err != nil {
				if _, peekErr := reader.Peek(1); peekErr != io.EOF {
					return err
				}
				if err := file.Truncate(offset); err != nil {
					return fmt.Errorf("truncate torn wal entry: %w", err)
				}
				return file.Sync()
			}
		}
		offset += int64(len(line))
		if readErr == io.EOF {
			return nil
		}
	}
}
