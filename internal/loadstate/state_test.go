package loadstate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsLoading(t *testing.T) {
	var s State[[]int]
	assert.True(t, s.IsLoading())
	assert.False(t, s.Settled())
	_, ok := s.Data()
	assert.False(t, ok)
}

func TestFromResult(t *testing.T) {
	isEmpty := func(v []int) bool { return len(v) == 0 }

	ready := FromResult([]int{1, 2}, nil, isEmpty)
	assert.Equal(t, StatusReady, ready.Status())
	data, ok := ready.Data()
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, data)

	empty := FromResult([]int{}, nil, isEmpty)
	assert.Equal(t, StatusEmpty, empty.Status())

	boom := errors.New("boom")
	failed := FromResult([]int{1}, boom, isEmpty)
	assert.Equal(t, StatusFailed, failed.Status())
	assert.ErrorIs(t, failed.Err(), boom)
	assert.Nil(t, failed.DataOr(nil))
}

func TestFailedWithoutReason(t *testing.T) {
	s := Failed[int](nil)
	assert.ErrorIs(t, s.Err(), ErrUnknown)
}

func TestMapCarriesStatus(t *testing.T) {
	double := func(v int) int { return v * 2 }

	assert.Equal(t, 4, Map(Ready(2), double).DataOr(0))
	assert.True(t, Map(Loading[int](), double).IsLoading())
	assert.Equal(t, StatusEmpty, Map(Empty[int](), double).Status())

	boom := errors.New("boom")
	assert.ErrorIs(t, Map(Failed[int](boom), double).Err(), boom)
}

func TestMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(Ready([]string{"a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready","data":["a"]}`, string(raw))

	raw, err = json.Marshal(Failed[int](errors.New("upstream_unavailable")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","error":"upstream_unavailable"}`, string(raw))

	raw, err = json.Marshal(Loading[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"loading"}`, string(raw))
}
