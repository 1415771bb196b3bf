package xsdnorm

import (
	"encoding/base64"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueParser coerces a leaf's raw character content to a native
// domain value. It returns *CoercionError (via newCoercionError) on
// malformed input (§4.A).
type ValueParser func(raw string) (interface{}, error)

func identityParser(raw string) (interface{}, error) { return raw, nil }

func splitWhitespaceParser(raw string) (interface{}, error) {
	fields := strings.Fields(raw)
	out := make([]string, len(fields))
	copy(out, fields)
	return out, nil
}

// parseXSDBoolean implements the corrected XSD boolean contract (§4.A,
// §8 property 7): "true"/"1" -> true, "false"/"0" -> false, case
// sensitively per the XSD 1.0 lexical space. This deliberately does
// NOT copy the "is a member of the valid set" membership bug the
// source implementation shipped.
func parseXSDBoolean(raw string) (interface{}, error) {
	switch strings.TrimSpace(raw) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return nil, newCoercionError("boolean", raw, nil)
	}
}

func integerParser(raw string) (interface{}, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, newCoercionError("integer", raw, err)
	}
	return v, nil
}

func decimalParser(raw string) (interface{}, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, newCoercionError("decimal", raw, err)
	}
	return v, nil
}

func doubleParser(raw string) (interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, newCoercionError("double", raw, err)
	}
	return v, nil
}

// isoInstantParser parses ISO-8601 date/dateTime lexical forms to a
// UTC instant. Per §1 non-goals, no further date/time arithmetic is
// performed.
func isoInstantParser(raw string) (interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02Z07:00",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, newCoercionError("dateTime", raw, nil)
}

func hexBinaryParser(raw string) (interface{}, error) {
	b, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, newCoercionError("hexBinary", raw, err)
	}
	return b, nil
}

func base64BinaryParser(raw string) (interface{}, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, newCoercionError("base64Binary", raw, err)
	}
	return b, nil
}

// builtinParsers is the closed enumeration of XSD primitive local
// names to value parsers (§4.A). Every entry here has a parser;
// "anySimpleType" is handled specially in the compiler (its base is
// recorded as absent, not looked up here).
var builtinParsers = map[string]ValueParser{
	"string":           identityParser,
	"normalizedString": identityParser,
	"token":            identityParser,
	"language":         identityParser,
	"NMTOKEN":          identityParser,
	"Name":             identityParser,
	"NCName":           identityParser,
	"ID":               identityParser,
	"IDREF":            identityParser,
	"ENTITY":           identityParser,
	"anyURI":           identityParser,

	"NMTOKENS": splitWhitespaceParser,
	"IDREFS":   splitWhitespaceParser,
	"ENTITIES": splitWhitespaceParser,

	"boolean": parseXSDBoolean,

	"integer":            integerParser,
	"nonNegativeInteger": integerParser,
	"nonPositiveInteger": integerParser,
	"positiveInteger":    integerParser,
	"negativeInteger":    integerParser,
	"long":               integerParser,
	"int":                integerParser,
	"short":              integerParser,
	"byte":               integerParser,
	"unsignedLong":       integerParser,
	"unsignedInt":        integerParser,
	"unsignedShort":      integerParser,
	"unsignedByte":       integerParser,

	"decimal": decimalParser,

	"double": doubleParser,
	"float":  doubleParser,

	"dateTime": isoInstantParser,
	"date":     isoInstantParser,

	"hexBinary":    hexBinaryParser,
	"base64Binary": base64BinaryParser,

	"duration":   identityParser,
	"time":       identityParser,
	"gYear":      identityParser,
	"gYearMonth": identityParser,
	"gMonth":     identityParser,
	"gMonthDay":  identityParser,
	"gDay":       identityParser,
	"QName":      identityParser,
	"NOTATION":   identityParser,
}

// builtinParser looks up a builtin by bare local name (the XS prefix
// has already been stripped per §3).
func builtinParser(local string) (ValueParser, bool) {
	p, ok := builtinParsers[local]
	return p, ok
}

// isBuiltinType reports whether local is a recognized XSD primitive,
// including anySimpleType/anyType which have no parser of their own.
func isBuiltinType(local string) bool {
	if local == "anySimpleType" || local == "anyType" {
		return true
	}
	_, ok := builtinParsers[local]
	return ok
}
