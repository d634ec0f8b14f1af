package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestEncode(t *testing.T) {
	msg, err := encode(Event{Key: "term/42", Value: payload{ID: "42", Count: 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte("term/42"), msg.Key)
	assert.JSONEq(t, `{"id":"42","count":3}`, string(msg.Value))
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode(Event{Key: "k", Value: make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "k")
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[payload]([]byte(`{"id":"7","count":1}`))
	require.NoError(t, err)
	assert.Equal(t, payload{ID: "7", Count: 1}, got)

	_, err = DecodeJSON[payload]([]byte(`{not json`))
	require.Error(t, err)
}
