package dispatch

import (
	"encoding/json"
	"fmt"
)

// convertReply turns the raw bytes read back from a message's reply
// bucket into a (*Reply, error) pair: a missing bucket is NO_REPLY, a
// payload that doesn't decode is UNSUPPORTED_MESSAGE, and a decoded
// reply carrying its own Error field is propagated as a *ReplyError
// rather than returned as a successful Reply — mirroring the original's
// convertReply, which throws for an error-carrying payload instead of
// handing it back to the caller as data.
func convertReply(raw []byte, found bool) (*Reply, error) {
	if !found {
		return nil, NewReplyError(ErrNoReply, "")
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, NewReplyError(ErrUnsupportedMessage, fmt.Sprintf("decoding reply: %v", err))
	}

	if !reply.Success && reply.Error != "" {
		return nil, NewReplyError(reply.Error, reply.ErrorMessage)
	}

	return &reply, nil
}

// encodeMessage marshals msg for publication to a device's accept
// topic.
func encodeMessage(msg Message) ([]byte, error) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", NewReplyError(ErrSystemError, ""), err)
	}
	return encoded, nil
}
