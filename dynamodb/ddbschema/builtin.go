package ddbschema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// Names of the converters registered on every registry.
const (
	ConverterRFC3339  = "rfc3339"
	ConverterUnixTime = "unixtime"
	ConverterDuration = "duration"
)

// RFC3339Converter stores times as RFC 3339 strings with nanosecond precision.
// It is the default converter for time.Time.
type RFC3339Converter struct{}

func (RFC3339Converter) AttributeKind() AttributeKind { return KindS }

func (RFC3339Converter) ToAttributeValue(t time.Time) (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: t.Format(time.RFC3339Nano)}, nil
}

func (RFC3339Converter) FromAttributeValue(av types.AttributeValue) (time.Time, error) {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return time.Time{}, mismatch(KindS, av)
	}
	return time.Parse(time.RFC3339Nano, s.Value)
}

// UnixTimeConverter stores times as epoch seconds, the format DynamoDB TTL attributes require.
type UnixTimeConverter struct{}

func (UnixTimeConverter) AttributeKind() AttributeKind { return KindN }

func (UnixTimeConverter) ToAttributeValue(t time.Time) (types.AttributeValue, error) {
	return attributevalue.UnixTime(t).MarshalDynamoDBAttributeValue()
}

func (UnixTimeConverter) FromAttributeValue(av types.AttributeValue) (time.Time, error) {
	var u attributevalue.UnixTime
	if err := u.UnmarshalDynamoDBAttributeValue(av); err != nil {
		return time.Time{}, err
	}
	return time.Time(u), nil
}

// DurationConverter stores durations in their string form, e.g. "1h30m".
type DurationConverter struct{}

func (DurationConverter) AttributeKind() AttributeKind { return KindS }

func (DurationConverter) ToAttributeValue(d time.Duration) (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: d.String()}, nil
}

func (DurationConverter) FromAttributeValue(av types.AttributeValue) (time.Duration, error) {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return 0, mismatch(KindS, av)
	}
	return time.ParseDuration(s.Value)
}

// Number is any Go numeric type with a DynamoDB N representation.
type Number interface {
	constraints.Integer | constraints.Float
}

// NumberConverter converts numeric values of type N.
type NumberConverter[N Number] struct{}

func (NumberConverter[N]) AttributeKind() AttributeKind { return KindN }

func (NumberConverter[N]) ToAttributeValue(n N) (types.AttributeValue, error) {
	s, err := formatNumber(reflect.ValueOf(n))
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberN{Value: s}, nil
}

func (NumberConverter[N]) FromAttributeValue(av types.AttributeValue) (N, error) {
	var n N
	v, err := parseNumber(av, reflect.TypeFor[N]())
	if err != nil {
		return n, err
	}
	return v.Interface().(N), nil
}

// StringConverter converts string-kinded values of type S.
type StringConverter[S ~string] struct{}

func (StringConverter[S]) AttributeKind() AttributeKind { return KindS }

func (StringConverter[S]) ToAttributeValue(s S) (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: string(s)}, nil
}

func (StringConverter[S]) FromAttributeValue(av types.AttributeValue) (S, error) {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", mismatch(KindS, av)
	}
	return S(s.Value), nil
}

func formatNumber(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("%v cannot be stored as a number", f)
		}
		return strconv.FormatFloat(f, 'f', -1, v.Type().Bits()), nil
	}
	return "", fmt.Errorf("%s is not a number", v.Type())
}

// parseNumber decodes an N attribute into a value of numeric type t,
// rejecting values that overflow t.
func parseNumber(av types.AttributeValue, t reflect.Type) (reflect.Value, error) {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return reflect.Value{}, mismatch(KindN, av)
	}
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(n.Value, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("parse %s: %w", t, err)
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(n.Value, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("parse %s: %w", t, err)
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(n.Value, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("parse %s: %w", t, err)
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("%s is not a number", t)
	}
	return out, nil
}
