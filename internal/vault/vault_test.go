package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingKV struct {
	calls int
	data  map[string]map[string]any
}

func (k *countingKV) Get(_ context.Context, mount, path string) (map[string]any, error) {
	k.calls++
	return k.data[mount+"/"+path], nil
}

func TestResolve_CachesPerKey(t *testing.T) {
	kv := &countingKV{data: map[string]map[string]any{
		"secret/dirsite": {"ftp_password": "hunter2", "port": 21},
	}}
	c := NewWithKV(kv)

	got, err := c.Resolve(context.Background(), "secret/dirsite#ftp_password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	_, err = c.Resolve(context.Background(), "secret/dirsite#ftp_password")
	require.NoError(t, err)
	assert.Equal(t, 1, kv.calls)
}

func TestResolve_Errors(t *testing.T) {
	kv := &countingKV{data: map[string]map[string]any{
		"secret/dirsite": {"port": 21},
	}}
	c := NewWithKV(kv)

	_, err := c.Resolve(context.Background(), "secret/dirsite")
	assert.Error(t, err, "missing #key")

	_, err = c.Resolve(context.Background(), "secret/dirsite#nope")
	assert.ErrorContains(t, err, "not found")

	_, err = c.Resolve(context.Background(), "secret/dirsite#port")
	assert.ErrorContains(t, err, "not a string")
}
