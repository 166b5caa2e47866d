package publish

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var ErrDumpTooBig = errors.New("dump file has exceeded its max size")

type Dumper interface {
	Dump(buffer MessageBuffer) error
	GetPath() string
	GetMaxSize() int64
}

// SimpleDumper appends messages to one file, one JSON document per line.
type SimpleDumper struct {
	file    string
	maxSize int64 // megabytes
}

func NewSimpleDumper(path string, maxSize int64) Dumper {
	return &SimpleDumper{file: path, maxSize: maxSize}
}

func (d *SimpleDumper) GetMaxSize() int64 {
	return d.maxSize
}

func (d *SimpleDumper) GetPath() string {
	return d.file
}

func (d *SimpleDumper) Dump(buffer MessageBuffer) error {
	if err := os.MkdirAll(filepath.Dir(d.file), 0o755); err != nil {
		return errors.Wrap(err, "create dump dir")
	}
	file, err := os.OpenFile(d.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open dump file")
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat dump file")
	}
	// bytes to megabytes
	if info.Size()/1024/1024 >= d.maxSize {
		return ErrDumpTooBig
	}
	for i := 0; i < buffer.Len(); i++ {
		if _, err = file.WriteString(buffer.At(i).GetValueForDump()); err != nil {
			return errors.Wrap(err, "write dump file")
		}
	}
	return nil
}
