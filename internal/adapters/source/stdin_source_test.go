package source

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/core"
)

func collectRecords(t *testing.T, input string) []*core.Record {
	t.Helper()

	var mu sync.Mutex
	var got []*core.Record
	src := NewStdinSource(strings.NewReader(input), func(_ context.Context, rec *core.Record) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
	}, zap.NewNop())

	require.NoError(t, src.Start())
	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("source did not finish reading")
	}
	return got
}

func TestReadsNewlineDelimitedRecords(t *testing.T) {
	input := `{"thread_id":"t1","sender_email":"a@example.com","subject":"hi"}
{"thread_id":"t2","sender_email":"b@example.com"}
`
	got := collectRecords(t, input)

	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ThreadID)
	assert.Equal(t, "a@example.com", got[0].SenderEmail)
	assert.Equal(t, "hi", got[0].Subject)
	assert.Equal(t, "t2", got[1].ThreadID)
}

func TestSkipsMalformedAndEmptyLines(t *testing.T) {
	input := "not json\n\n{\"thread_id\":\"ok\"}\n{broken\n"
	got := collectRecords(t, input)

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ThreadID)
}

func TestDecodesEscapedStrings(t *testing.T) {
	input := "{\"thread_id\":\"t1\",\"sender_name\":\"Ali\\u0063e\",\"subject\":\"ok\"}\n"
	got := collectRecords(t, input)

	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].SenderName)
}

func TestStopHaltsDelivery(t *testing.T) {
	blocker := make(chan struct{})
	reader := &slowReader{unblock: blocker}
	src := NewStdinSource(reader, func(context.Context, *core.Record) {
		t.Error("no records expected after stop")
	}, zap.NewNop())

	require.NoError(t, src.Start())
	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop())

	close(blocker)
	select {
	case <-src.Done():
	case <-time.After(time.Second):
		t.Fatal("source did not drain after stop")
	}
}

// slowReader blocks until unblocked, then delivers one record line and
// ends the stream.
type slowReader struct {
	unblock <-chan struct{}
	sent    bool
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, context.Canceled
	}
	<-r.unblock
	r.sent = true
	line := "{\"thread_id\":\"late\"}\n"
	return copy(p, line), nil
}
