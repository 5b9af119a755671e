package sim

import (
	"fmt"
	"strings"
)

// ContractClass selects the contract sizing an order is placed in.
type ContractClass string

const (
	Micro ContractClass = "micro"
	Mini  ContractClass = "mini"
)

// MicrosPerMini is the fixed conversion between the two classes.
// Lot limits are expressed in mini lots.
const MicrosPerMini = 10

// ContractSpec describes one contract class.
type ContractSpec struct {
	Class        ContractClass
	UnitValue    float64 // currency per point per lot
	MarginPerLot float64
}

// Contracts holds the built-in specs. A one point move is worth $2 per
// micro contract and $20 per mini.
var Contracts = map[ContractClass]ContractSpec{
	Micro: {
		Class:        Micro,
		UnitValue:    2.0,
		MarginPerLot: 500,
	},
	Mini: {
		Class:        Mini,
		UnitValue:    20.0,
		MarginPerLot: 10000,
	},
}

func ParseContractClass(s string) (ContractClass, error) {
	switch c := ContractClass(strings.ToLower(strings.TrimSpace(s))); c {
	case Micro, Mini:
		return c, nil
	default:
		return "", fmt.Errorf("unknown contract class %q", s)
	}
}

func (c ContractClass) Valid() bool {
	return c == Micro || c == Mini
}

// ToMiniLots converts qty lots of class c into mini-equivalent lots.
func ToMiniLots(qty int, c ContractClass) float64 {
	if c == Micro {
		return float64(qty) / MicrosPerMini
	}
	return float64(qty)
}

// LotsPerMini is how many lots of class c make up one mini lot.
func LotsPerMini(c ContractClass) int {
	if c == Micro {
		return MicrosPerMini
	}
	return 1
}
