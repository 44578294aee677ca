package util

import (
	"fmt"

	"github.com/go-sif/sifql"
)

// recovered turns a recovered panic value into an error, keeping error values wrappable
func recovered(prefix string, r interface{}, trace string) error {
	if anErr, ok := r.(error); ok {
		return fmt.Errorf("%s: %w\n%s", prefix, anErr, trace)
	}
	return fmt.Errorf("%s: %v\n%s", prefix, r, trace)
}

func rowString(row sifql.Row) string {
	if row == nil {
		return "<nil>"
	}
	return sifql.ArrayRow(row.Materialize()).String()
}

// SafeCollectOperation wraps the body of a Collector such that panics are recovered and nice error messages are constructed
func SafeCollectOperation(name string, collectOp func() error) (safeCollectOp func() error) {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recovered("Collect Panic in "+name, r, GetTrace())
			}
		}()
		return collectOp()
	}
}

// SafeRowOperation wraps a per-row operation such that panics are recovered and errors name the offending row
func SafeRowOperation(kind string, rowOp func(row sifql.Row) error) (safeRowOp func(row sifql.Row) error) {
	return func(row sifql.Row) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recovered(fmt.Sprintf("%s Panic on row %s", kind, rowString(row)), r, GetTrace())
			} else if err != nil {
				err = fmt.Errorf("%s Error on row %s: %w", kind, rowString(row), err)
			}
		}()
		return rowOp(row)
	}
}

// SafeFilterOperation wraps a row predicate like SafeRowOperation
func SafeFilterOperation(filterOp func(row sifql.Row) (bool, error)) (safeFilterOp func(row sifql.Row) (bool, error)) {
	return func(row sifql.Row) (matches bool, err error) {
		defer func() {
			if r := recover(); r != nil {
				matches, err = false, recovered("Filter Panic on row "+rowString(row), r, GetTrace())
			} else if err != nil {
				err = fmt.Errorf("Filter Error on row %s: %w", rowString(row), err)
			}
		}()
		return filterOp(row)
	}
}
