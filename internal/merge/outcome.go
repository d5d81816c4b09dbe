package merge

// Kind classifies one fetch attempt.
type Kind int

const (
	KindTransportFailure Kind = iota
	KindUnparsablePayload
	KindEmptyOrInvalid
	KindSuccess
)

func (k Kind) String() string {
	switch k {
	case KindTransportFailure:
		return "transport_failure"
	case KindUnparsablePayload:
		return "unparsable_payload"
	case KindEmptyOrInvalid:
		return "empty_or_invalid"
	case KindSuccess:
		return "success"
	}
	return "unknown"
}

// Kinds lists every outcome kind, in declaration order.
var Kinds = []Kind{KindTransportFailure, KindUnparsablePayload, KindEmptyOrInvalid, KindSuccess}

// Sample is one position returned by the lookup service. Nil fields were
// missing or not numeric.
type Sample struct {
	Lat       *float64
	Lon       *float64
	Timestamp *int64
}

// Observation is a parsed lookup result. Samples are in chronological order.
type Observation struct {
	Name    *string
	Samples []Sample
}

// Outcome is the result of one fetch attempt as seen by the merge engine.
type Outcome struct {
	kind        Kind
	err         error
	observation Observation
}

// TransportFailure is a network or HTTP error.
func TransportFailure(err error) Outcome {
	return Outcome{kind: KindTransportFailure, err: err}
}

// UnparsablePayload is a response body that could not be decoded.
func UnparsablePayload(err error) Outcome {
	return Outcome{kind: KindUnparsablePayload, err: err}
}

// Observed wraps a parsed result. Whether it counts as a success is decided
// by Apply.
func Observed(obs Observation) Outcome {
	return Outcome{kind: KindSuccess, observation: obs}
}

// Err returns the transport or decode error, if any.
func (o Outcome) Err() error {
	return o.err
}

// Classify returns the outcome kind and, on success, the newest sample.
func (o Outcome) Classify() (Kind, Sample) {
	if o.kind != KindSuccess {
		return o.kind, Sample{}
	}
	n := len(o.observation.Samples)
	if n == 0 {
		return KindEmptyOrInvalid, Sample{}
	}
	last := o.observation.Samples[n-1]
	if last.Lat == nil || last.Lon == nil {
		return KindEmptyOrInvalid, Sample{}
	}
	return KindSuccess, last
}
