package store

import "errors"

var (
	ErrConnectFailed       = errors.New("connect failed")
	ErrDriverConfiguration = errors.New("driver configuration")
	ErrNotFound            = errors.New("not found")
	ErrUnknownDriver       = errors.New("unknown driver")
	ErrMalformedKey        = errors.New("malformed key")
	ErrShardExists         = errors.New("shard already exists")
	ErrShardNotFound       = errors.New("shard not found")
	ErrShardInUse          = errors.New("shard in use")
)
