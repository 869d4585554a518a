package storage

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"moodline/internal/domain"
)

// CSV appends audit records to a CSV file. The file is opened lazily on the
// first append and gets the header row only if it is empty at that point.
type CSV struct {
	path string

	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Append(_ context.Context, rec domain.AuditRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		if err := c.open(); err != nil {
			return domain.LogError("audit csv: open "+c.path, err)
		}
	}

	if err := c.w.Write(row(rec)); err != nil {
		return domain.LogError("audit csv: write", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return domain.LogError("audit csv: flush", err)
	}
	return nil
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}
	c.w.Flush()
	werr := c.w.Error()
	err := c.f.Close()
	c.f, c.w = nil, nil
	if werr != nil {
		return domain.LogError("audit csv: flush", werr)
	}
	if err != nil {
		return domain.LogError("audit csv: close", err)
	}
	return nil
}

// open must be called with mu held.
func (c *CSV) open() error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close()
			return err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return err
		}
	}

	c.f, c.w = f, w
	return nil
}

func row(rec domain.AuditRecord) []string {
	return []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.UserID,
		rec.InputText,
		rec.Label,
		strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
	}
}
