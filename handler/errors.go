package handler

import "fmt"

type errMissingField string

func (e errMissingField) Error() string {
	return fmt.Sprintf("missing field %q", string(e))
}
