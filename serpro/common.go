package serpro

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Error kinds. Every error produced by this module wraps exactly one of them.
var (
	ErrConfiguration  = errors.New("serpro configuration error")
	ErrAuthentication = errors.New("serpro authentication error")
	ErrTransport      = errors.New("serpro transport error")
	ErrResponseFormat = errors.New("serpro response format error")
	ErrValidation     = errors.New("serpro validation error")
)

type rowKey struct{}

// ContextWithRow attaches the 0-based spreadsheet row index, used for log correlation.
func ContextWithRow(ctx context.Context, row int) context.Context {
	return context.WithValue(ctx, rowKey{}, row)
}

func RowFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(rowKey{}).(int)
	return v, ok
}

// Logger returns the component logger enriched with the row ordinal (1-based) when present.
func Logger(ctx context.Context, component string) *logrus.Entry {
	l := logrus.WithField("component", component)
	if row, ok := RowFromContext(ctx); ok {
		l = l.WithField("row", row+1)
	}
	return l
}

// Kind returns the error kind err wraps, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrConfiguration, ErrAuthentication, ErrTransport, ErrResponseFormat, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string        { return e.err.Error() }
func (e *kindError) Unwrap() error        { return e.err }
func (e *kindError) Is(target error) bool { return target == e.kind }

// Mark wraps err with msg and tags the result with kind. err must not be nil.
func Mark(kind, err error, msg string) error {
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// Markf creates a new error tagged with kind.
func Markf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}
