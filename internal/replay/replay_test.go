package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/session"
	"github.com/ayusman/formrep/testdata"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(session.DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestRun_Recording(t *testing.T) {
	r, err := testdata.OpenRecording(testdata.Pushups)
	require.NoError(t, err)

	s := newSession(t)
	var counted []int
	sum, err := Run(context.Background(), r, s, func(rep session.Report) {
		if rep.Counted {
			counted = append(counted, rep.Count)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, testdata.PushupsReps, sum.Reps)
	assert.Equal(t, []int{1, 2, 3, 4}, counted)
	assert.Equal(t, 55, sum.Frames)
	assert.Equal(t, 52, sum.Evaluated)
	assert.Equal(t, map[session.SkipReason]int{
		session.SkipNoPerson:      2,
		session.SkipLowConfidence: 1,
	}, sum.Skipped)
	assert.Equal(t, 5400*time.Millisecond, sum.Duration)
	assert.Len(t, s.Reps(), testdata.PushupsReps)
	for _, rep := range s.Reps() {
		assert.Less(t, rep.Depth, 90.0)
	}
}

func TestRun_Cancelled(t *testing.T) {
	r, err := testdata.OpenRecording(testdata.Pushups)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	sum, err := Run(ctx, r, newSession(t), func(session.Report) {
		frames++
		if frames == 10 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, sum.Frames)
}

func TestRun_MalformedStopsWithSummary(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	base := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Record(base, detector.PlankTopPose()))
	require.NoError(t, rec.Flush())
	buf.WriteString("{not json}\n")

	sum, err := Run(context.Background(), &buf, newSession(t), nil)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 1, sum.Frames)
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad json", input: `{"t": 0, "keypoints": [`},
		{name: "too few keypoints", input: `{"t": 0, "keypoints": [[1,2,0.9]]}`},
		{name: "negative time", input: `{"t": -5, "keypoints": null}`},
		{name: "time goes back", input: "{\"t\": 200, \"keypoints\": null}\n{\"t\": 100, \"keypoints\": null}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			var err error
			for err == nil {
				_, err = r.Next()
			}
			assert.ErrorIs(t, err, ErrMalformed)
			assert.False(t, errors.Is(err, io.EOF))
		})
	}
}

func TestReader_BlankLinesAndNull(t *testing.T) {
	input := "\n{\"t\": 0, \"keypoints\": null}\n\n   \n{\"t\": 40, \"keypoints\": null}\n"
	r := NewReader(strings.NewReader(input))

	f, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, f.Pose)
	assert.Equal(t, time.Duration(0), f.Offset)

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, f.Offset)
	assert.Equal(t, 5, r.Line())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)

	n, err := Count(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)

	base := time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)
	poses := []*detector.Pose{detector.PlankTopPose(), nil, detector.PlankBottomPose()}
	for i, p := range poses {
		require.NoError(t, rec.Record(base.Add(time.Duration(i)*150*time.Millisecond), p))
	}
	require.NoError(t, rec.Flush())
	assert.Equal(t, 3, rec.Frames())

	r := NewReader(&buf)
	for i, want := range poses {
		f, err := r.Next()
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, time.Duration(i)*150*time.Millisecond, f.Offset)

		if want == nil {
			assert.Nil(t, f.Pose)
			continue
		}
		require.NotNil(t, f.Pose)
		assert.Equal(t, want.Keypoints, f.Pose.Keypoints)
	}
}
