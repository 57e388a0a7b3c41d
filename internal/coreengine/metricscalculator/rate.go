package metricscalculator

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Rate is an exact ratio of integer counts.
//
// A zero Denominator is only meaningful together with the Undefined flag:
// when Undefined is false the rate is the defined 0 of an empty reference
// scored against an empty hypothesis; when Undefined is true the reference
// was empty but the hypothesis was not, and no numeric value exists. Undefined
// rates never turn into NaN or Inf.
type Rate struct {
	Numerator   int
	Denominator int
	Undefined   bool
}

// UndefinedRate is the sentinel reported when a rate has no denominator.
var UndefinedRate = Rate{Undefined: true}

// newRate builds num/den. hypothesisTokens decides what a zero denominator
// means.
func newRate(num, den, hypothesisTokens int) Rate {
	if den == 0 && hypothesisTokens > 0 {
		return Rate{Numerator: num, Undefined: true}
	}
	return Rate{Numerator: num, Denominator: den}
}

// IsUndefined reports whether r is the UndefinedRate sentinel.
func (r Rate) IsUndefined() bool { return r.Undefined }

// Float64 returns the value of r and false when r is undefined.
func (r Rate) Float64() (float64, bool) {
	if r.Undefined {
		return 0, false
	}
	if r.Denominator == 0 {
		return 0, true
	}
	return float64(r.Numerator) / float64(r.Denominator), true
}

// normalized maps the defined 0/0 to 0/1 so cross-multiplication works.
func (r Rate) normalized() (int64, int64) {
	if r.Denominator == 0 {
		return 0, 1
	}
	return int64(r.Numerator), int64(r.Denominator)
}

// Cmp compares two rates exactly. It returns -1 when r < o, 0 when they are
// equal and +1 when r > o. An undefined rate sorts after every defined rate;
// two undefined rates compare equal.
func (r Rate) Cmp(o Rate) int {
	switch {
	case r.Undefined && o.Undefined:
		return 0
	case r.Undefined:
		return 1
	case o.Undefined:
		return -1
	}
	rn, rd := r.normalized()
	on, od := o.normalized()
	if rd == od {
		return cmpInt64(rn, on)
	}
	return cmpInt64(rn*od, on*rd)
}

// Sub returns r - o as an exact ratio; the result is undefined when either
// operand is.
func (r Rate) Sub(o Rate) Rate {
	if r.Undefined || o.Undefined {
		return UndefinedRate
	}
	rn, rd := r.normalized()
	on, od := o.normalized()
	if rd == od {
		return Rate{Numerator: int(rn - on), Denominator: int(rd)}
	}
	return Rate{Numerator: int(rn*od - on*rd), Denominator: int(rd * od)}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the value with four decimals or "undefined".
func (r Rate) String() string {
	v, ok := r.Float64()
	if !ok {
		return "undefined"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Percent renders the value as a percentage with two decimals.
func (r Rate) Percent() string {
	v, ok := r.Float64()
	if !ok {
		return "undefined"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

type rateJSON struct {
	Value       *float64 `json:"value"`
	Numerator   int      `json:"numerator"`
	Denominator int      `json:"denominator"`
	Undefined   bool     `json:"undefined,omitempty"`
}

// MarshalJSON emits the raw counts and the value; value is null when the
// rate is undefined.
func (r Rate) MarshalJSON() ([]byte, error) {
	out := rateJSON{Numerator: r.Numerator, Denominator: r.Denominator, Undefined: r.Undefined}
	if v, ok := r.Float64(); ok {
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var in rateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Rate{Numerator: in.Numerator, Denominator: in.Denominator, Undefined: in.Undefined}
	return nil
}

// NewErrorRate builds an error rate from an edit distance and the two
// sequence lengths, applying the zero-length reference policy.
func NewErrorRate(errors, referenceLength, hypothesisLength int) Rate {
	return newRate(errors, referenceLength, hypothesisLength)
}
