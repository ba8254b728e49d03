package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// encMode uses Core Deterministic Encoding so identical values always produce
// identical cache payloads.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v as deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Key builds a namespaced cache key whose suffix is the BLAKE3 digest of
// parts. Parts are length-prefixed so ("ab","c") and ("a","bc") differ.
func Key(namespace string, parts ...string) string {
	h := blake3.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%d:", len(part))
		_, _ = h.Write([]byte(part))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// GetValue fetches key and decodes it into out. An entry that fails to decode
// is deleted and reported as a miss so the caller recomputes it.
func GetValue(ctx context.Context, p Provider, key string, out any) error {
	data, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := Unmarshal(data, out); err != nil {
		_ = p.Del(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

// SetValue encodes v and stores it under key.
func SetValue(ctx context.Context, p Provider, key string, v any, ttl time.Duration) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return p.Set(ctx, key, data, ttl)
}
