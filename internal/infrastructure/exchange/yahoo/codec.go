package yahoo

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"tickfolio/internal/domain"
)

// PricingData field numbers. Anything not listed here is skipped on decode.
const (
	fieldID            protowire.Number = 1
	fieldPrice         protowire.Number = 2
	fieldTime          protowire.Number = 3
	fieldCurrency      protowire.Number = 4
	fieldExchange      protowire.Number = 5
	fieldChangePercent protowire.Number = 8
	fieldDayVolume     protowire.Number = 9
)

var (
	// ErrMalformed is matched by every DecodeError.
	ErrMalformed = errors.New("malformed quote")
	// ErrNotPricing marks well-formed frames that carry no quote (e.g. heartbeats).
	ErrNotPricing = errors.New("not a pricing frame")
)

// DecodeError reports which field of a wire message could not be decoded.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed quote: %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

func malformed(field, format string, args ...any) error {
	return &DecodeError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

const (
	seenID = 1 << iota
	seenPrice
	seenTime
	seenCurrency

	seenRequired = seenID | seenPrice | seenTime | seenCurrency
)

// Decode parses one protobuf PricingData message.
func Decode(b []byte) (domain.Quote, error) {
	var (
		q    domain.Quote
		seen int
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Quote{}, malformed("tag", "%v", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldID:
			s, m, err := consumeString("id", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			sym := domain.NormalizeSymbol(s)
			if sym == "" {
				return domain.Quote{}, malformed("id", "empty symbol")
			}
			q.Symbol, seen, n = sym, seen|seenID, m
		case fieldPrice:
			f, m, err := consumeFloat("price", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return domain.Quote{}, malformed("price", "not finite")
			}
			q.Price, seen, n = f, seen|seenPrice, m
		case fieldTime:
			ms, m, err := consumeSint("time", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			q.Timestamp, seen, n = time.UnixMilli(ms).UTC(), seen|seenTime, m
		case fieldCurrency:
			s, m, err := consumeString("currency", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			c, err := domain.ParseCurrency(s)
			if err != nil {
				return domain.Quote{}, malformed("currency", "unsupported code %q", s)
			}
			q.Currency, seen, n = c, seen|seenCurrency, m
		case fieldExchange:
			s, m, err := consumeString("exchange", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			q.Exchange, n = s, m
		case fieldChangePercent:
			f, m, err := consumeFloat("changePercent", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			q.ChangePercent, n = f, m
		case fieldDayVolume:
			v, m, err := consumeSint("dayVolume", typ, b)
			if err != nil {
				return domain.Quote{}, err
			}
			q.DayVolume, n = v, m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Quote{}, malformed(fmt.Sprintf("field %d", num), "%v", protowire.ParseError(n))
			}
		}
		b = b[n:]
	}

	if seen&seenRequired != seenRequired {
		return domain.Quote{}, malformed("message", "missing required fields (have %04b)", seen)
	}
	return q, nil
}

func consumeString(field string, typ protowire.Type, b []byte) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, malformed(field, "wire type %d, want bytes", typ)
	}
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, malformed(field, "%v", protowire.ParseError(n))
	}
	return s, n, nil
}

// consumeFloat accepts both float (fixed32) and double (fixed64) encodings.
func consumeFloat(field string, typ protowire.Type, b []byte) (float64, int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return 0, 0, malformed(field, "%v", protowire.ParseError(n))
		}
		return float64(math.Float32frombits(v)), n, nil
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return 0, 0, malformed(field, "%v", protowire.ParseError(n))
		}
		return math.Float64frombits(v), n, nil
	default:
		return 0, 0, malformed(field, "wire type %d, want fixed32 or fixed64", typ)
	}
}

func consumeSint(field string, typ protowire.Type, b []byte) (int64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, malformed(field, "wire type %d, want varint", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, malformed(field, "%v", protowire.ParseError(n))
	}
	return protowire.DecodeZigZag(v), n, nil
}

// Encode writes q as a PricingData message. Floats are written as doubles so
// Decode(Encode(q)) == q for any quote with a millisecond timestamp.
func Encode(q domain.Quote) []byte {
	b := make([]byte, 0, 64)
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, string(q.Symbol))
	b = protowire.AppendTag(b, fieldPrice, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(q.Price))
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(q.Timestamp.UnixMilli()))
	b = protowire.AppendTag(b, fieldCurrency, protowire.BytesType)
	b = protowire.AppendString(b, string(q.Currency))
	if q.Exchange != "" {
		b = protowire.AppendTag(b, fieldExchange, protowire.BytesType)
		b = protowire.AppendString(b, q.Exchange)
	}
	if q.ChangePercent != 0 {
		b = protowire.AppendTag(b, fieldChangePercent, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(q.ChangePercent))
	}
	if q.DayVolume != 0 {
		b = protowire.AppendTag(b, fieldDayVolume, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(q.DayVolume))
	}
	return b
}

// envelope is the JSON wrapper newer streamer versions put around the payload.
type envelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DecodeFrame decodes one text frame: either bare base64 or a JSON envelope
// holding base64 in "message".
func DecodeFrame(frame []byte) (domain.Quote, error) {
	frame = bytes.TrimSpace(frame)
	payload := frame
	if len(frame) > 0 && frame[0] == '{' {
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			return domain.Quote{}, malformed("envelope", "%v", err)
		}
		if env.Type != "" && env.Type != "pricing" {
			return domain.Quote{}, fmt.Errorf("%w: type %q", ErrNotPricing, env.Type)
		}
		payload = []byte(env.Message)
	}
	if len(payload) == 0 {
		return domain.Quote{}, malformed("frame", "empty payload")
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	n, err := base64.StdEncoding.Decode(raw, payload)
	if err != nil {
		return domain.Quote{}, malformed("frame", "base64: %v", err)
	}
	return Decode(raw[:n])
}

// EncodeFrame is the inverse of DecodeFrame for bare base64 frames.
func EncodeFrame(q domain.Quote) []byte {
	raw := Encode(q)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out
}

// SubscribeFrame is the control message sent after every (re)connect.
func SubscribeFrame(symbols []domain.Symbol) ([]byte, error) {
	list := make([]string, len(symbols))
	for i, s := range symbols {
		list[i] = string(s)
	}
	return json.Marshal(struct {
		Subscribe []string `json:"subscribe"`
	}{Subscribe: list})
}
