package bambu

import (
	"fmt"

	"github.com/samber/lo"
)

// ErrorCodes maps print_error values to the message the printer shows.
var ErrorCodes = map[int]string{
	0x03004000: "Z axis homing failed; the task has been stopped.",
	0x03004001: "The printer timed out waiting for the nozzle to cool down before homing.",
	0x03004005: "The print head cooling fan speed is abnormal.",
	0x0300400A: "Mechanical resonance frequency identification failed.",
	0x0300400C: "Printing was cancelled.",
	0x0300400D: "Resume failed after power loss.",
	0x03008001: "Printing was paused by the user.",
	0x03008004: "Filament ran out. Please load new filament.",
	0x0300800A: "A filament pile-up was detected by the AI Print Monitoring. Please clean the filament from the waste chute.",
	0x0300800B: "The cutter is stuck. Please make sure the cutter handle is out.",
	0x03008015: "Filament has run out. Please load new filament.",
	0x0500400E: "Printing was cancelled.",
	0x07008011: "AMS filament ran out. Please insert a new filament into the same AMS slot.",
}

// CancelledErrorCodes are the failures that mean someone stopped the print.
var CancelledErrorCodes = []int{
	0x0300400C,
	0x0500400E,
}

var FilamentRunoutErrorCodes = []int{
	0x03008004,
	0x03008015,
}

// ParseErrorCode returns a human readable message for a print_error value.
func ParseErrorCode(code *int) string {
	if code == nil {
		return "Unknown error code"
	}
	if msg, ok := ErrorCodes[*code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error code %#x", *code)
}

func IsCancelled(code *int) bool {
	return code != nil && lo.Contains(CancelledErrorCodes, *code)
}

func IsFilamentRunout(code *int) bool {
	return code != nil && lo.Contains(FilamentRunoutErrorCodes, *code)
}
