package log

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidEvent is returned for events that cannot go into the audit log.
var ErrInvalidEvent = errors.New("invalid audit event")

// maxEventNesting covers Event -> ErrorData with room for one more level.
const maxEventNesting = 4

// Audit events are encoded in RFC 8949 core deterministic form with tagged
// RFC 3339 timestamps. The decoder only accepts what the encoder produces:
// no indefinite lengths, no duplicate keys and untagged times are rejected.
var (
	logEncMode cbor.EncMode
	logDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagRequired,
	}
	logEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create audit CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		TimeTag:         cbor.DecTagRequired,
		MaxNestedLevels: maxEventNesting,
	}
	logDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create audit CBOR decoder mode: %v", err))
	}
}

// Validate checks that event can be written to the audit log.
func (e Event) Validate() error {
	if e.Category > CategoryError {
		return fmt.Errorf("%w: category %d", ErrInvalidEvent, e.Category)
	}
	if e.Category == CategoryError && e.Error == nil {
		return fmt.Errorf("%w: ERROR event without error data", ErrInvalidEvent)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: no timestamp", ErrInvalidEvent)
	}
	return nil
}

// EncodeEvent validates event and encodes it to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes exactly one CBOR event. Trailing bytes are an error.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewDecoder creates a CBOR decoder for a stream of audit events.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}
