package tx

import (
	"encoding/json"
	"testing"
)

// FuzzTxUnmarshal feeds arbitrary JSON through the decoding that submit
// applies to a transaction file.
func FuzzTxUnmarshal(f *testing.F) {
	f.Add([]byte(`{"version":1,"inputs":[{"prevout":{"txid":"0000000000000000000000000000000000000000000000000000000000000000","index":0},"script":{"type":81,"data":"2a"},"signature":"00","pubkey":"00"}],"outputs":[{"value":1000,"script":{"type":1,"data":"0000000000000000000000000000000000000000"}}]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"inputs":null,"outputs":null}`))
	f.Add([]byte(`{"inputs":[{"script":{"type":81,"data":"zz"}}]}`))
	f.Add([]byte(`{"inputs":[{"signature":"","pubkey":""}],"outputs":[{"value":0}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var tx Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			return
		}
		tx.Hash()
		tx.Validate()
		tx.VerifySignatures()
	})
}
