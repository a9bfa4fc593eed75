package services

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLedger struct {
	surveyed  map[string]bool
	appended  [][]string
	filterErr error
	appendErr error
}

func (l *fakeLedger) FilterSurveyed(codes []string) (map[string]bool, error) {
	if l.filterErr != nil {
		return nil, l.filterErr
	}
	result := make(map[string]bool)
	for _, code := range codes {
		if l.surveyed[code] {
			result[code] = true
		}
	}
	return result, nil
}

func (l *fakeLedger) AppendSurveyed(codes []string, _ time.Time) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	appended := append([]string{}, codes...)
	l.appended = append(l.appended, appended)
	return nil
}

type fakeCounter struct {
	// counts wird pro Aufruf konsumiert; der letzte Wert bleibt stehen.
	counts []int64
	err    error
	calls  int
}

func (c *fakeCounter) CountActive(_ time.Time) (int64, error) {
	c.calls++
	if c.err != nil {
		err := c.err
		c.err = nil
		return 0, err
	}
	if len(c.counts) > 1 {
		count := c.counts[0]
		c.counts = c.counts[1:]
		return count, nil
	}
	if len(c.counts) == 1 {
		return c.counts[0], nil
	}
	return 0, nil
}

type fakeQueue struct {
	enqueued []string
	failFor  map[string]bool
}

func (q *fakeQueue) Enqueue(code string) error {
	if q.failFor[code] {
		return errors.New("queue rejected job")
	}
	q.enqueued = append(q.enqueued, code)
	return nil
}

func newController(ledger *fakeLedger, counter *fakeCounter, queue *fakeQueue, batchSize int) *AdmissionController {
	return &AdmissionController{
		Ledger:         ledger,
		Jobs:           counter,
		Queue:          queue,
		Logger:         zap.NewNop(),
		BatchSize:      batchSize,
		ConcurrencyCap: 15,
		PacingDelay:    30 * time.Second,
		Sleep:          func(time.Duration) {},
		Now:            func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestAdmissionSkipsAlreadySurveyedCodes(t *testing.T) {
	ledger := &fakeLedger{surveyed: map[string]bool{"GSE9": true}}
	counter := &fakeCounter{}
	queue := &fakeQueue{}

	controller := newController(ledger, counter, queue, 1000)
	fed, err := controller.Run([]string{"GSE9", "GSE10"})
	require.NoError(t, err)

	assert.Equal(t, 1, fed)
	assert.Equal(t, []string{"GSE10"}, queue.enqueued)
	require.Len(t, ledger.appended, 1)
	assert.Equal(t, []string{"GSE10"}, ledger.appended[0])
}

func TestAdmissionWaitsWhileAtConcurrencyCap(t *testing.T) {
	ledger := &fakeLedger{}
	counter := &fakeCounter{counts: []int64{15, 15, 3}}
	queue := &fakeQueue{}

	var slept int
	controller := newController(ledger, counter, queue, 1000)
	controller.Sleep = func(time.Duration) { slept++ }

	fed, err := controller.Run([]string{"SRP1"})
	require.NoError(t, err)

	assert.Equal(t, 1, fed)
	assert.Equal(t, []string{"SRP1"}, queue.enqueued)
	// Zwei Warte-Schleifen am Cap plus die Taktung nach dem Enqueue.
	assert.Equal(t, 3, slept)
	assert.Equal(t, 3, counter.calls)
}

func TestAdmissionTreatsCounterErrorAsAtCap(t *testing.T) {
	ledger := &fakeLedger{}
	counter := &fakeCounter{err: errors.New("db down")}
	queue := &fakeQueue{}

	controller := newController(ledger, counter, queue, 1000)
	_, err := controller.Run([]string{"SRP1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"SRP1"}, queue.enqueued)
	assert.Equal(t, 2, counter.calls)
}

func TestAdmissionContinuesAfterEnqueueFailure(t *testing.T) {
	ledger := &fakeLedger{}
	counter := &fakeCounter{}
	queue := &fakeQueue{failFor: map[string]bool{"BAD1": true}}

	controller := newController(ledger, counter, queue, 1000)
	fed, err := controller.Run([]string{"BAD1", "GSE2", "GSE3"})
	require.NoError(t, err)

	assert.Equal(t, 2, fed)
	sort.Strings(queue.enqueued)
	assert.Equal(t, []string{"GSE2", "GSE3"}, queue.enqueued)

	// Der fehlgeschlagene Code landet nicht im Ledger und wird beim
	// nächsten Lauf erneut versucht.
	require.Len(t, ledger.appended, 1)
	sort.Strings(ledger.appended[0])
	assert.Equal(t, []string{"GSE2", "GSE3"}, ledger.appended[0])
}

func TestAdmissionWritesLedgerPerBatch(t *testing.T) {
	ledger := &fakeLedger{}
	counter := &fakeCounter{}
	queue := &fakeQueue{}

	controller := newController(ledger, counter, queue, 2)
	fed, err := controller.Run([]string{"GSE1", "GSE2", "GSE3"})
	require.NoError(t, err)

	assert.Equal(t, 3, fed)
	assert.Len(t, queue.enqueued, 3)
	require.Len(t, ledger.appended, 2)
	assert.Len(t, ledger.appended[0], 2)
	assert.Len(t, ledger.appended[1], 1)
}

func TestAdmissionSkipsLedgerWriteWhenNothingFed(t *testing.T) {
	ledger := &fakeLedger{surveyed: map[string]bool{"GSE1": true}}
	counter := &fakeCounter{}
	queue := &fakeQueue{}

	controller := newController(ledger, counter, queue, 1000)
	fed, err := controller.Run([]string{"GSE1"})
	require.NoError(t, err)

	assert.Equal(t, 0, fed)
	assert.Empty(t, queue.enqueued)
	assert.Empty(t, ledger.appended)
}

func TestAdmissionRejectsNonPositiveBatchSize(t *testing.T) {
	controller := newController(&fakeLedger{}, &fakeCounter{}, &fakeQueue{}, 0)
	_, err := controller.Run([]string{"GSE1"})
	assert.Error(t, err)
}

func TestAdmissionPropagatesLedgerLookupError(t *testing.T) {
	ledger := &fakeLedger{filterErr: errors.New("db down")}
	controller := newController(ledger, &fakeCounter{}, &fakeQueue{}, 1000)
	_, err := controller.Run([]string{"GSE1"})
	assert.Error(t, err)
}

func TestSourceTypeForAccession(t *testing.T) {
	assert.Equal(t, "ARRAY_EXPRESS", SourceTypeForAccession("E-MTAB-3050"))
	assert.Equal(t, "GEO", SourceTypeForAccession("GSE12345"))
	assert.Equal(t, "SRA", SourceTypeForAccession("SRP123456"))
	assert.Equal(t, "SRA", SourceTypeForAccession("ERP000001"))
	assert.Equal(t, "SRA", SourceTypeForAccession("DRP000001"))
	assert.Equal(t, "UNKNOWN", SourceTypeForAccession("X999"))
}
