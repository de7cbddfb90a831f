package timeval

import "github.com/fxamacker/cbor/v2"

// wireTimeValue is TimeValue's over-the-wire shape: its fields are private
// so the type can enforce its normalization invariant everywhere except at
// the wire boundary.
type wireTimeValue struct {
	Seconds uint64
	Nanos   uint32
}

// MarshalCBOR implements cbor.Marshaler.
func (t TimeValue) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wireTimeValue{Seconds: t.secondsSinceEpoch, Nanos: t.nanos})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *TimeValue) UnmarshalCBOR(data []byte) error {
	var w wireTimeValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = New(w.Seconds, w.Nanos)
	return nil
}

type wireTimeDuration struct {
	Seconds int64
	Nanos   int32
}

// MarshalCBOR implements cbor.Marshaler.
func (d TimeDuration) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wireTimeDuration{Seconds: d.seconds, Nanos: d.nanos})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (d *TimeDuration) UnmarshalCBOR(data []byte) error {
	var w wireTimeDuration
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = NewDuration(w.Seconds, int64(w.Nanos))
	return nil
}
