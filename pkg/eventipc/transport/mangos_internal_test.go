package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3"
)

func TestConfigureMangos_RequesterNeverResends(t *testing.T) {
	sock, err := newMangosSocket(Requester)
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, configureMangos(sock, Requester, Options{RecvTimeout: 50 * time.Millisecond}))

	v, err := sock.GetOption(mangos.OptionRetryTime)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), v)

	v, err = sock.GetOption(mangos.OptionRecvDeadline)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, v)
}
