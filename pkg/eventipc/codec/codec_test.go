package codec_test

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/randalmurphal/eventipc/pkg/eventipc/codec"
	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
	ipcerrors "github.com/randalmurphal/eventipc/pkg/eventipc/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"

func serializers() []codec.Serializer {
	return []codec.Serializer{codec.JSON{}, codec.Proto{}}
}

func TestCodec_RoundTrip(t *testing.T) {
	payload := map[string]any{
		"name":  "Alice",
		"count": float64(3),
		"tags":  []any{"a", "b"},
		"ok":    true,
		"none":  nil,
		"inner": map[string]any{"someProperty": float64(42)},
	}

	for _, s := range serializers() {
		for _, cipher := range []string{crypto.CipherNone, crypto.CipherAESGCM, crypto.CipherXChaCha20Poly1305} {
			t.Run(s.Name()+"/"+cipher, func(t *testing.T) {
				strategy, err := crypto.New(cipher, testKey)
				require.NoError(t, err)
				c := codec.New(codec.WithSerializer(s), codec.WithStrategy(strategy))

				frame, err := c.Encode("greet", payload)
				require.NoError(t, err)

				env, err := c.Decode(frame)
				require.NoError(t, err)
				assert.Equal(t, "greet", env.Event)
				assert.Equal(t, payload, env.Payload)
			})
		}
	}
}

func TestCodec_NilPayloadBecomesEmptyObject(t *testing.T) {
	for _, s := range serializers() {
		t.Run(s.Name(), func(t *testing.T) {
			c := codec.New(codec.WithSerializer(s))

			frame, err := c.Encode("ping", nil)
			require.NoError(t, err)

			env, err := c.Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{}, env.Payload)
		})
	}
}

func TestCodec_ScalarPayload(t *testing.T) {
	for _, s := range serializers() {
		t.Run(s.Name(), func(t *testing.T) {
			c := codec.New(codec.WithSerializer(s))

			frame, err := c.Encode("update-value", 7)
			require.NoError(t, err)

			env, err := c.Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, float64(7), env.Payload)
		})
	}
}

func TestCodec_TypedPayloadIsNormalized(t *testing.T) {
	type greeting struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}

	for _, s := range serializers() {
		t.Run(s.Name(), func(t *testing.T) {
			c := codec.New(codec.WithSerializer(s))

			frame, err := c.Encode("greet", greeting{Name: "Bob", Tags: []string{"x"}})
			require.NoError(t, err)

			env, err := c.Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"name": "Bob", "tags": []any{"x"}}, env.Payload)
		})
	}
}

func TestCodec_LargeIntegersDecodeAsFloat(t *testing.T) {
	const big = int64(1)<<53 + 1

	for _, s := range serializers() {
		t.Run(s.Name(), func(t *testing.T) {
			c := codec.New(codec.WithSerializer(s))

			frame, err := c.Encode("count", map[string]any{"n": big, "s": "9007199254740993"})
			require.NoError(t, err)

			env, err := c.Decode(frame)
			require.NoError(t, err)
			payload := env.Payload.(map[string]any)
			assert.Equal(t, float64(1<<53), payload["n"])
			assert.Equal(t, "9007199254740993", payload["s"])
		})
	}
}

func TestCodec_JSONWireFormat(t *testing.T) {
	c := codec.New()

	frame, err := c.Encode("greet", map[string]any{"name": "Alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"greet","payload":{"name":"Alice"}}`, string(frame))

	env, err := c.Decode([]byte(`{"event":"greet"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, env.Payload)
}

func TestCodec_EmptyEventRejected(t *testing.T) {
	c := codec.New()
	_, err := c.Encode("", map[string]any{})
	assert.ErrorIs(t, err, codec.ErrEmptyEvent)
}

func TestCodec_MalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		s     codec.Serializer
		frame []byte
	}{
		{"json garbage", codec.JSON{}, []byte("not json")},
		{"json array", codec.JSON{}, []byte(`[1,2,3]`)},
		{"json missing event", codec.JSON{}, []byte(`{"payload":{}}`)},
		{"json empty event", codec.JSON{}, []byte(`{"event":"","payload":{}}`)},
		{"json wrong event type", codec.JSON{}, []byte(`{"event":5}`)},
		{"proto garbage", codec.Proto{}, []byte{0xff, 0xff, 0xff}},
		{"proto missing event", codec.Proto{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := codec.New(codec.WithSerializer(tt.s))

			_, err := c.Decode(tt.frame)
			require.Error(t, err)

			var decodeErr *ipcerrors.DecodeError
			assert.True(t, errors.As(err, &decodeErr), "want DecodeError, got %T", err)
			assert.True(t, ipcerrors.IsMalformed(err))
		})
	}
}

func TestCodec_MalformedAfterDecryption(t *testing.T) {
	strategy, err := crypto.NewAESGCM(testKey)
	require.NoError(t, err)
	c := codec.New(codec.WithStrategy(strategy))

	// Authenticates fine, but the plaintext is not an envelope.
	frame, err := strategy.Encrypt([]byte("garbage"))
	require.NoError(t, err)

	_, err = c.Decode(frame)
	var decodeErr *ipcerrors.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, len("garbage"), decodeErr.Size)
}

func TestCodec_TamperedFrame(t *testing.T) {
	strategy, err := crypto.NewXChaCha20Poly1305(testKey)
	require.NoError(t, err)

	var fired atomic.Int32
	strategy.OnCompromised(func() { fired.Add(1) })

	c := codec.New(codec.WithStrategy(strategy))
	frame, err := c.Encode("greet", map[string]any{"name": "Alice"})
	require.NoError(t, err)

	tampered := bytes.Clone(frame)
	tampered[len(tampered)/2] ^= 0x80

	env, err := c.Decode(tampered)
	require.Error(t, err)
	assert.Empty(t, env.Event)

	var tamperErr *ipcerrors.TamperError
	require.True(t, errors.As(err, &tamperErr), "want TamperError, got %T", err)
	assert.ErrorIs(t, err, crypto.ErrTampered)
	assert.True(t, ipcerrors.IsCompromised(err))
	assert.Equal(t, int32(1), fired.Load())
}

func TestCodec_PlaintextPeerRejectedByEncryptedCodec(t *testing.T) {
	plain := codec.New()
	frame, err := plain.Encode("greet", nil)
	require.NoError(t, err)

	strategy, err := crypto.NewAESGCM(testKey)
	require.NoError(t, err)
	encrypted := codec.New(codec.WithStrategy(strategy))

	_, err = encrypted.Decode(frame)
	assert.True(t, ipcerrors.IsCompromised(err))
}

func TestCodec_NoopStrategyIsIdentity(t *testing.T) {
	plain := codec.New()
	noop := codec.New(codec.WithStrategy(crypto.Noop{}))

	a, err := plain.Encode("greet", map[string]any{"k": "v"})
	require.NoError(t, err)
	b, err := noop.Encode("greet", map[string]any{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCodec_SetStrategyConcurrently(t *testing.T) {
	strategy, err := crypto.NewAESGCM(testKey)
	require.NoError(t, err)
	c := codec.New(codec.WithStrategy(strategy))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetStrategy(strategy)
		}()
		go func() {
			defer wg.Done()
			frame, err := c.Encode("tick", nil)
			if assert.NoError(t, err) {
				_, err = c.Decode(frame)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	c.SetStrategy(nil)
	assert.Nil(t, c.Strategy())
}

func TestSerializerByName(t *testing.T) {
	for name, want := range map[string]string{
		"":         codec.SerializerJSON,
		"json":     codec.SerializerJSON,
		"JSON":     codec.SerializerJSON,
		"proto":    codec.SerializerProto,
		"protobuf": codec.SerializerProto,
	} {
		s, err := codec.SerializerByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name())
	}

	_, err := codec.SerializerByName("xml")
	assert.Error(t, err)
}
