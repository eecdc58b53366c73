package vitals

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Sentinel is the device-side "no data" marker. It is rejected explicitly so
// clients get a clearer message than the generic range error.
const Sentinel = -999

// Reading is one SpO2 / heart-rate sample as sent by a device.
type Reading struct {
	SpO2 float64 `json:"spo2"`
	HR   float64 `json:"hr"`
}

// StoredReading is a Reading accepted by the server, stamped with the UTC time
// it was appended to the store.
type StoredReading struct {
	Reading
	TimestampServer time.Time `json:"timestamp_server"`
}

// Payload is the wire form of a Reading. Pointer fields distinguish a missing
// field from an explicit zero.
type Payload struct {
	SpO2 *float64 `json:"spo2"`
	HR   *float64 `json:"hr"`
}

// FieldError is one violated rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidReading is returned when a reading fails validation. It carries one
// FieldError per offending field.
type InvalidReading struct {
	Errors []FieldError
}

func (e *InvalidReading) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return "invalid reading: " + strings.Join(msgs, "; ")
}

// Fields returns the names of the offending fields in report order.
func (e *InvalidReading) Fields() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Field)
	}
	return out
}

// AsInvalid reports whether err is (or wraps) an *InvalidReading.
func AsInvalid(err error) (*InvalidReading, bool) {
	var inv *InvalidReading
	if errors.As(err, &inv) {
		return inv, true
	}
	return nil, false
}

// Validate checks both fields of r. Each field reports only its first
// violated rule; errors from both fields are aggregated.
func Validate(r Reading) error {
	var errs []FieldError
	if msg := checkSpO2(r.SpO2); msg != "" {
		errs = append(errs, FieldError{Field: "spo2", Message: msg})
	}
	if msg := checkHR(r.HR); msg != "" {
		errs = append(errs, FieldError{Field: "hr", Message: msg})
	}
	if len(errs) > 0 {
		return &InvalidReading{Errors: errs}
	}
	return nil
}

// Reading converts p to a Reading and validates it. Missing fields are
// reported as required instead of being treated as zero.
func (p Payload) Reading() (Reading, error) {
	var (
		r    Reading
		errs []FieldError
	)

	if p.SpO2 == nil {
		errs = append(errs, FieldError{Field: "spo2", Message: "spo2 is required"})
	} else {
		r.SpO2 = *p.SpO2
		if msg := checkSpO2(r.SpO2); msg != "" {
			errs = append(errs, FieldError{Field: "spo2", Message: msg})
		}
	}

	if p.HR == nil {
		errs = append(errs, FieldError{Field: "hr", Message: "hr is required"})
	} else {
		r.HR = *p.HR
		if msg := checkHR(r.HR); msg != "" {
			errs = append(errs, FieldError{Field: "hr", Message: msg})
		}
	}

	if len(errs) > 0 {
		return Reading{}, &InvalidReading{Errors: errs}
	}
	return r, nil
}

func checkSpO2(v float64) string {
	if v == Sentinel {
		return "spo2 cannot be -999"
	}
	// The negated form also rejects NaN.
	if !(v >= 0 && v <= 100) {
		return "spo2 must be between 0 and 100"
	}
	return ""
}

func checkHR(v float64) string {
	if v == Sentinel {
		return "hr cannot be -999"
	}
	if !(v > 0) || math.IsInf(v, 1) {
		return "hr must be greater than 0"
	}
	return ""
}
