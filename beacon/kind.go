package beacon

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies a supported beacon format.
type Kind int

const (
	IBeacon Kind = iota
	Kontakt
	Eddystone
	LairdBT510
	BTHome
	Ruuvi
	SGWireless
	Shelly
	numKinds
)

var kindNames = [...]string{
	IBeacon:    "ibeacon",
	Kontakt:    "kontakt",
	Eddystone:  "eddystone",
	LairdBT510: "lairdbt510",
	BTHome:     "bthome",
	Ruuvi:      "ruuvi",
	SGWireless: "sgwireless",
	Shelly:     "shelly",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds lists every supported format in declaration order.
func Kinds() []Kind {
	ret := make([]Kind, numKinds)
	for i := range ret {
		ret[i] = Kind(i)
	}
	return ret
}

// ParseKind looks a kind up by its name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, errors.Errorf("unknown beacon format %q", s)
}

// KindSet is a bit set of kinds, used to enable formats for scanning.
type KindSet uint32

// AllKinds enables every format.
const AllKinds = KindSet(1<<numKinds - 1)

func SetOf(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

func (s KindSet) Kinds() []Kind {
	var ret []Kind
	for _, k := range Kinds() {
		if s.Has(k) {
			ret = append(ret, k)
		}
	}
	return ret
}

// ParseKindSet parses a list of format names. An empty list means all.
func ParseKindSet(names []string) (KindSet, error) {
	if len(names) == 0 {
		return AllKinds, nil
	}
	var s KindSet
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return 0, err
		}
		s |= SetOf(k)
	}
	return s, nil
}
