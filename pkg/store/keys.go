package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Key layout. Shard data lives in per-shard keyspaces under the data prefix;
// catalog metadata lives under the system prefix. Big-endian encoding keeps
// iterator order equal to numeric document-key order, so every sub-range of a
// shard's numeric key space maps to one [lower, upper) byte-bound pair.
//
//	data key:   0x01 | uint64 keyspace (BE) | uint64 docKey (BE)
//	system key: 0x00 | path
const (
	systemPrefix byte = 0x00
	dataPrefix   byte = 0x01

	dataKeyLen = 1 + 8 + 8
)

const (
	shardMetaPath    = "shard/"
	nextKeyspacePath = "meta/next-keyspace"
)

// DataKey encodes the storage key of document docKey inside the given shard
// keyspace.
func DataKey(keyspace, docKey uint64) []byte {
	key := make([]byte, dataKeyLen)
	key[0] = dataPrefix
	binary.BigEndian.PutUint64(key[1:], keyspace)
	binary.BigEndian.PutUint64(key[9:], docKey)
	return key
}

// DocKey decodes the numeric document key out of a data key.
func DocKey(key []byte) (uint64, error) {
	if len(key) != dataKeyLen || key[0] != dataPrefix {
		return 0, fmt.Errorf("%w: %d bytes", ErrMalformedKey, len(key))
	}
	return binary.BigEndian.Uint64(key[9:]), nil
}

// KeyspaceBounds returns the byte bounds [lower, upper) covering the whole
// keyspace.
func KeyspaceBounds(keyspace uint64) (lower, upper []byte) {
	lower = make([]byte, 9)
	lower[0] = dataPrefix
	binary.BigEndian.PutUint64(lower[1:], keyspace)
	if keyspace == math.MaxUint64 {
		upper = []byte{dataPrefix + 1}
	} else {
		upper = make([]byte, 9)
		upper[0] = dataPrefix
		binary.BigEndian.PutUint64(upper[1:], keyspace+1)
	}
	return lower, upper
}

// RangeBounds returns the byte bounds of the sub-range [lowerDoc, upperDoc)
// within the keyspace. upperDoc == MaxUint64 means "to end of keyspace", which
// keeps the document with key MaxUint64 itself reachable.
func RangeBounds(keyspace, lowerDoc, upperDoc uint64) (lower, upper []byte) {
	lower = DataKey(keyspace, lowerDoc)
	if upperDoc == math.MaxUint64 {
		_, upper = KeyspaceBounds(keyspace)
	} else {
		upper = DataKey(keyspace, upperDoc)
	}
	return lower, upper
}

func shardMetaKey(name string) []byte {
	key := make([]byte, 0, 1+len(shardMetaPath)+len(name))
	key = append(key, systemPrefix)
	key = append(key, shardMetaPath...)
	key = append(key, name...)
	return key
}

func shardMetaBounds() (lower, upper []byte) {
	lower = shardMetaKey("")
	upper = append([]byte(nil), lower...)
	upper[len(upper)-1]++
	return lower, upper
}

func nextKeyspaceKey() []byte {
	return append([]byte{systemPrefix}, nextKeyspacePath...)
}
