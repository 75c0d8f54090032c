package dos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTripWithImagesAndPending(t *testing.T) {
	rec := Record{
		Online: true,
		IP:     "127.0.0.1:9000",
		Images: []string{"cat.png", "dog.png"},
		Pending: []PendingUpdate{
			{ImageName: "cat.png", NewViews: 3, PushedBy: "a1B2c3D4"},
		},
	}

	got, err := parseRecord(rec.encode())
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestRecordRoundTripNoImagesNoPending(t *testing.T) {
	rec := Record{Online: false, IP: "10.0.0.1:1"}
	got, err := parseRecord(rec.encode())
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestParseRecordRejectsMalformedStatusLine(t *testing.T) {
	_, err := parseRecord([]byte("garbage\n"))
	require.Error(t, err)
}

func TestParseRecordRejectsUnknownStatus(t *testing.T) {
	_, err := parseRecord([]byte("7,127.0.0.1:1\n"))
	require.Error(t, err)
}

func TestParseRecordRejectsMalformedUpdateLine(t *testing.T) {
	_, err := parseRecord([]byte("1,127.0.0.1:1\ncat.png\nUPDATE:onlyonefield\n"))
	require.Error(t, err)
}
