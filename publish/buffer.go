package publish

import (
	"github.com/gammazero/deque"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MessageBuffer keeps messages that could not be delivered yet.
type MessageBuffer interface {
	Append(logger *log.Logger, msg ...Message) error
	ExtractBatch(batchSz int) []Message
	Dump(logger *log.Logger) error
	Len() int
	GetMaxLen() int
	At(i int) Message
}

type DequeBuffer struct {
	buf    *deque.Deque[Message]
	dumper Dumper
	maxLen int
}

func NewDequeBuffer(d Dumper, mLen int) MessageBuffer {
	return &DequeBuffer{buf: deque.New[Message](), dumper: d, maxLen: mLen}
}

func (d *DequeBuffer) GetMaxLen() int {
	return d.maxLen
}

func (d *DequeBuffer) Len() int {
	return d.buf.Len()
}

// Append spills the buffer and the new messages to the dumper once maxLen would be reached.
func (d *DequeBuffer) Append(logger *log.Logger, msg ...Message) error {
	for _, m := range msg {
		d.buf.PushBack(m)
	}
	if d.Len() >= d.maxLen {
		logger.Traceln("dumping buffer because it exceeded max size")
		return d.Dump(logger)
	}
	return nil
}

func (d *DequeBuffer) At(i int) Message {
	return d.buf.At(i)
}

// Dump empties the buffer into the dumper. A full dump file is a CriticalError and the buffer is kept.
func (d *DequeBuffer) Dump(logger *log.Logger) error {
	if d.Len() == 0 {
		return nil
	}
	err := d.dumper.Dump(d)
	if errors.Is(err, ErrDumpTooBig) {
		return NewCriticalError(err).Wrap(map[string]interface{}{"File": d.dumper.GetPath(), "MaxSize": d.dumper.GetMaxSize()})
	}
	if err != nil {
		return err
	}
	logger.Warnf("dumped %d undelivered messages to %s", d.Len(), d.dumper.GetPath())
	d.buf.Clear()
	return nil
}

// ExtractBatch pops up to batchSz messages from the front.
func (d *DequeBuffer) ExtractBatch(batchSz int) []Message {
	var res []Message
	for d.Len() > 0 && len(res) < batchSz {
		res = append(res, d.buf.PopFront())
	}
	return res
}
