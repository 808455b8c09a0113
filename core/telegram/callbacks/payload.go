package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt parses callback payload as int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(CallbackPayload(c))
}

// PayloadParts splits the callback payload into parts using the given separator.
func PayloadParts(c tele.Context, sep string) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(p, sep), nil
}

// PayloadKeyIndex parses a payload like "<key>:<index>" into its string key
// and integer index. Used by flows that pin a button to one item of an
// ordered collection.
func PayloadKeyIndex(c tele.Context, sep string) (string, int, error) {
	parts, err := PayloadParts(c, sep)
	if err != nil {
		return "", 0, err
	}
	if len(parts) != 2 {
		return "", 0, strconv.ErrSyntax
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", 0, strconv.ErrSyntax
	}
	idx, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", 0, err
	}
	return key, idx, nil
}
