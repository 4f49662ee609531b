package engine

import (
	"errors"

	"mercator-hq/ruleengine/pkg/rule/codec"
	"mercator-hq/ruleengine/pkg/rule/compose"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
	"mercator-hq/ruleengine/pkg/rule/eval"
	"mercator-hq/ruleengine/pkg/store"
)

// errorKind names the category of err for metric labels and span
// attributes.
func errorKind(err error) string {
	var (
		parseErr  *ruleErrors.ParseError
		decodeErr *codec.DecodeError
		storeErr  *store.StoreError
	)
	switch {
	case errors.As(err, &parseErr):
		return string(parseErr.Kind)
	case errors.As(err, &decodeErr):
		return string(decodeErr.Kind)
	case errors.As(err, &storeErr):
		return string(storeErr.Kind)
	case errors.Is(err, eval.ErrMissingField):
		return "missing_field"
	case errors.Is(err, eval.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, compose.ErrEmpty):
		return "empty"
	case errors.Is(err, store.ErrInvalidName):
		return "invalid_name"
	}
	return "internal"
}
