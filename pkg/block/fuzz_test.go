package block

import (
	"encoding/json"
	"testing"
)

// FuzzBlockUnmarshal feeds arbitrary JSON through the decoding that
// connect applies to a block file.
func FuzzBlockUnmarshal(f *testing.F) {
	f.Add([]byte(`{"header":{"version":1,"prev_hash":"0000000000000000000000000000000000000000000000000000000000000000","merkle_root":"0000000000000000000000000000000000000000000000000000000000000000","timestamp":1000,"height":100},"transactions":[]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"header":null}`))
	f.Add([]byte(`{"header":{"version":1,"timestamp":1},"transactions":[null]}`))
	f.Add([]byte(`{"header":{"version":1,"timestamp":1},"transactions":[{"inputs":[{"script":{"type":81,"data":""}}],"outputs":[]}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var blk Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return
		}
		if blk.Validate() == nil {
			blk.Hash()
		}
	})
}

// FuzzHeaderUnmarshal checks that a decoded header always hashes.
func FuzzHeaderUnmarshal(f *testing.F) {
	f.Add([]byte(`{"version":1,"timestamp":1000,"height":0}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"height":18446744073709551615}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var h Header
		if err := json.Unmarshal(data, &h); err != nil {
			return
		}
		h.Hash()
		h.SigningBytes()
	})
}
