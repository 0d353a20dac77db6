package redis

import (
	"fmt"
	"strconv"

	"github.com/sharedcode/dsync"
)

// BoolReplyDecoder decodes integer replies of scripts returning 1 or 0.
type BoolReplyDecoder struct{}

// Decode converts raw to a bool. A nil reply decodes to false.
func (BoolReplyDecoder) Decode(raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int64:
		return v == 1, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, fmt.Errorf("can't decode %q as a boolean reply: %w", v, err)
		}
		return n == 1, nil
	}
	return false, fmt.Errorf("can't decode %T as a boolean reply", raw)
}

// IsApplicable reports that the decoder applies to every field of a reply.
func (BoolReplyDecoder) IsApplicable(fieldIndex int) bool {
	return true
}

// Int64ReplyDecoder decodes integer and numeric bulk string replies.
type Int64ReplyDecoder struct{}

// Decode converts raw to an int64. A nil reply, i.e. a missing key, decodes to zero.
func (Int64ReplyDecoder) Decode(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("can't decode %q as an integer reply: %w", v, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("can't decode %T as an integer reply", raw)
}

// IsApplicable reports that the decoder applies to every field of a reply.
func (Int64ReplyDecoder) IsApplicable(fieldIndex int) bool {
	return true
}

var (
	_ dsync.Decoder[bool]  = BoolReplyDecoder{}
	_ dsync.Decoder[int64] = Int64ReplyDecoder{}
	_ dsync.MultiDecoder   = BoolReplyDecoder{}
	_ dsync.MultiDecoder   = Int64ReplyDecoder{}
)
