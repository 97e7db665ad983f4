package broker

import (
	"errors"
	"fmt"
)

// Retcodes used by the paper broker and recognised from terminal bridges.
const (
	RetcodePlaced        = 10008
	RetcodeDone          = 10009
	RetcodeInvalid       = 10013
	RetcodeInvalidPrice  = 10015
	RetcodeInvalidStops  = 10016
	RetcodeTradeDisabled = 10017
	RetcodeMarketClosed  = 10018
	RetcodeNoMoney       = 10019
	RetcodeInvalidVolume = 10014
	RetcodePriceOff      = 10021
	RetcodePositionGone  = 10036
)

// Rejection is a refusal by the broker, carrying its retcode.
type Rejection struct {
	Code        int
	Description string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("broker rejected (%d): %s", r.Code, r.Description)
}

func Reject(code int, format string, args ...any) error {
	return &Rejection{Code: code, Description: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is (or wraps) a broker rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
