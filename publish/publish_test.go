package publish

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiload/kpi"
)

type fakeWriter struct {
	fail    bool
	written []kafka.Message
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

var at = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

func sampleResults() kpi.Results {
	north := "North"
	return kpi.Results{
		Repeat:   []kpi.RepeatCustomer{{MobileNumber: "XXXXXX3210", OrderCount: 3}},
		Monthly:  []kpi.MonthlyTrend{{YearMonth: "2025-09", Orders: 4}, {YearMonth: "2025-10", Orders: 2}},
		Regional: []kpi.RegionRevenue{{Region: &north, Revenue: decimal.RequireFromString("10.5")}, {Revenue: decimal.NewFromInt(1)}},
		Top:      []kpi.TopSpender{{MobileNumber: "XXXXXX3210", Spend: decimal.RequireFromString("99.9")}},
	}
}

func TestFromResults(t *testing.T) {
	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)
	require.Len(t, msgs, 6)

	km := msgs[3].ToKafkaMessage()
	assert.Equal(t, RegionalRevenueKPI, string(km.Key))
	assert.JSONEq(t, `{"kpi":"regional_revenue","computed_at":"2025-10-15T12:00:00Z","row":{"region":"North","revenue":"10.50"}}`, string(km.Value))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[5].ToKafkaMessage().Value, &env))
	row := env["row"].(map[string]interface{})
	assert.Equal(t, "99.90", row["spend"])
	assert.Equal(t, float64(30), row["window_days"])
	assert.True(t, strings.HasSuffix(msgs[0].GetValueForDump(), "\n"))
}

func TestPublisher_SendsInBatches(t *testing.T) {
	w := &fakeWriter{}
	buf := NewDequeBuffer(NewSimpleDumper(filepath.Join(t.TempDir(), DumpFileName), 1), 100)
	p := NewPublisherWith(w, buf, Config{BatchSize: 4}, quietLogger())

	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)
	res, err := p.Publish(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 6}, res)
	assert.Len(t, w.written, 6)
	assert.Equal(t, 0, buf.Len())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_BuffersAndDumpsOnFailure(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dumps", DumpFileName)
	w := &fakeWriter{fail: true}
	buf := NewDequeBuffer(NewSimpleDumper(dump, 1), 100)
	p := NewPublisherWith(w, buf, Config{BatchSize: 2}, quietLogger())

	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)
	res, err := p.Publish(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, Result{Buffered: 6}, res)
	assert.Equal(t, 6, buf.Len())

	flushed, err := p.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, flushed.Buffered)
	assert.Equal(t, 0, buf.Len())

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(data), "\n"))
}

func TestPublisher_FlushRetriesWhenBrokerIsBack(t *testing.T) {
	w := &fakeWriter{fail: true}
	buf := NewDequeBuffer(NewSimpleDumper(filepath.Join(t.TempDir(), DumpFileName), 1), 100)
	p := NewPublisherWith(w, buf, Config{BatchSize: 10}, quietLogger())

	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), msgs)
	require.NoError(t, err)

	w.fail = false
	res, err := p.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 6}, res)
	assert.Len(t, w.written, 6)
}

func TestDequeBuffer_SpillsWhenFull(t *testing.T) {
	dump := filepath.Join(t.TempDir(), DumpFileName)
	buf := NewDequeBuffer(NewSimpleDumper(dump, 1), 3)
	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)

	require.NoError(t, buf.Append(quietLogger(), msgs[:2]...))
	assert.Equal(t, 2, buf.Len())
	require.NoError(t, buf.Append(quietLogger(), msgs[2]))
	assert.Equal(t, 0, buf.Len())

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestDequeBuffer_DumpTooBigIsCritical(t *testing.T) {
	dump := filepath.Join(t.TempDir(), DumpFileName)
	require.NoError(t, os.WriteFile(dump, make([]byte, 1024*1024+1), 0o644))
	buf := NewDequeBuffer(NewSimpleDumper(dump, 1), 10)
	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)
	require.NoError(t, buf.Append(quietLogger(), msgs[0]))

	err = buf.Dump(quietLogger())
	var ce *CriticalError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrDumpTooBig)
	assert.Contains(t, err.Error(), "MaxSize=1")
	assert.Equal(t, 1, buf.Len(), "messages stay buffered when the dump is refused")
}

func TestDequeBuffer_ExtractBatch(t *testing.T) {
	buf := NewDequeBuffer(NewSimpleDumper(filepath.Join(t.TempDir(), DumpFileName), 1), 100)
	msgs, err := FromResults(sampleResults(), 30, at)
	require.NoError(t, err)
	require.NoError(t, buf.Append(quietLogger(), msgs...))

	first := buf.ExtractBatch(4)
	assert.Len(t, first, 4)
	assert.Equal(t, msgs[0], first[0])
	rest := buf.ExtractBatch(4)
	assert.Len(t, rest, 2)
	assert.Equal(t, 0, buf.Len())
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewPublisher(Config{Topic: "kpis"}, quietLogger())
	assert.Error(t, err)
}
