package dump

import "encoding/json"

// Batch is a size-bounded chunk of serialized records for one shard.
// Immutable once produced; retained by the registry until the consumer
// retires its id.
type Batch struct {
	ID      uint64
	Shard   string
	Content []byte
}

// record is the NDJSON line format of a single dumped entry. json encodes
// the value as base64.
type record struct {
	Key   uint64 `json:"key"`
	Value []byte `json:"value"`
}

func marshalRecord(docKey uint64, value []byte) ([]byte, error) {
	line, err := json.Marshal(record{Key: docKey, Value: value})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}
