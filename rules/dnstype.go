package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/miekg/dns"
)

// RRType is a semantic alias for uint16 when used as a DNS resource record (RR)
// type.
type RRType = uint16

// loadDNSTypes loads the $dnstype modifier.  types is the list of types
// separated by '|', restricted types start with '~'.
func loadDNSTypes(types string) (permittedTypes, restrictedTypes []RRType, err error) {
	if types == "" {
		return nil, nil, errors.Error("empty dns types")
	}

	for i, tStr := range strings.Split(types, "|") {
		isRestricted := strings.HasPrefix(tStr, "~")
		tStr = strings.TrimPrefix(tStr, "~")
		rrType, ok := dns.StringToType[strings.ToUpper(tStr)]
		if !ok {
			return nil, nil, fmt.Errorf("dns type %d: unknown type %q", i, tStr)
		}

		if isRestricted {
			restrictedTypes = append(restrictedTypes, rrType)
		} else {
			permittedTypes = append(permittedTypes, rrType)
		}
	}

	return permittedTypes, restrictedTypes, nil
}
